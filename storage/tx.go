// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// txKeyFor - key of the transaction record under the txdata prefix
func txKeyFor(key schema.TxKey) []byte {
	return schema.PrefixTxData.Key(key[:])
}

// outKeyFor - key of the output record under the txdata prefix
func outKeyFor(key schema.OutKey) []byte {
	return schema.PrefixTxData.Key(key[:])
}

// PutStoredTx - store a transaction slot
//
// with withTxOut every attached output is written under its own
// 8-byte key and the record is stored fragmented; the hint bucket
// for the hash prefix is updated either way
func (db *BlockDatabase) PutStoredTx(stx *transactionrecord.StoredTx, withTxOut bool) error {

	if withTxOut && !stx.Fragmented {
		return fault.ErrInvalidStructure
	}

	db.put(schema.BlkData, txKeyFor(stx.Key), stx.Serialise())

	if withTxOut {
		for outIndex, stxo := range stx.Outs {
			stxo.Key = stx.Key.Out(outIndex)
			db.PutStoredTxOut(stxo)
		}
	}

	return db.addTxHint(stx.Hash, stx.Key)
}

// UpdateStoredTx - rewrite a transaction record in place
func (db *BlockDatabase) UpdateStoredTx(stx *transactionrecord.StoredTx) {
	db.put(schema.BlkData, txKeyFor(stx.Key), stx.Serialise())
}

// DeleteStoredTx - remove a transaction slot and its outputs
//
// the hint entry is removed as well
func (db *BlockDatabase) DeleteStoredTx(stx *transactionrecord.StoredTx) error {
	db.remove(schema.BlkData, txKeyFor(stx.Key))
	for o := uint16(0); o < stx.NumTxOut; o += 1 {
		db.remove(schema.BlkData, outKeyFor(stx.Key.Out(o)))
	}

	prefix := transactionrecord.HintPrefixFromHash(stx.Hash)
	hints, err := db.GetTxHints(prefix)
	if nil != err {
		return nil // no bucket: nothing to unlink
	}
	if hints.Remove(stx.Key) {
		db.putTxHints(hints)
	}
	db.hashKeyCache.SetDelete(string(stx.Hash[:]))
	return nil
}

// GetStoredTx - read a transaction slot
//
// with withTxOut the external output records are attached; inline
// records carry their outputs already
func (db *BlockDatabase) GetStoredTx(key schema.TxKey, withTxOut bool) (*transactionrecord.StoredTx, error) {
	value := db.get(schema.BlkData, txKeyFor(key))
	if nil == value {
		return nil, fault.ErrTxNotFound
	}
	stx := &transactionrecord.StoredTx{Key: key}
	err := stx.Parse(value)
	if nil != err {
		return nil, err
	}

	if withTxOut && stx.Fragmented {
		stx.Outs = make(map[uint16]*transactionrecord.StoredTxOut, stx.NumTxOut)
		for o := uint16(0); o < stx.NumTxOut; o += 1 {
			stxo, err := db.GetStoredTxOut(key.Out(o))
			if nil != err {
				return nil, err
			}
			stx.Outs[o] = stxo
		}
	}
	return stx, nil
}

// GetStoredTxAtHeight - transaction by height and index on the valid
// branch
func (db *BlockDatabase) GetStoredTxAtHeight(height uint32, txIndex uint16, withTxOut bool) (*transactionrecord.StoredTx, error) {
	dup, ok := db.GetValidDupIDForHeight(height)
	if !ok {
		return nil, fault.ErrTxNotFound
	}
	return db.GetStoredTx(schema.NewTxKey(height, dup, txIndex), withTxOut)
}

// GetStoredTxByHash - transaction lookup through the hint table
//
// reads the 4-byte prefix bucket and walks the candidates, preferred
// first, comparing full hashes; the resolved key is cached.  the
// bucket's preferred index is not changed here
func (db *BlockDatabase) GetStoredTxByHash(hash chainhash.Hash, withTxOut bool) (*transactionrecord.StoredTx, error) {

	// recently resolved hashes skip the candidate walk
	if cached, found, _ := db.hashKeyCache.Get(string(hash[:])); found {
		key, err := schema.TxKeyFromBytes(cached)
		if nil == err {
			stx, err := db.GetStoredTx(key, withTxOut)
			if nil == err && stx.Hash == hash {
				return stx, nil
			}
		}
	}

	prefix := transactionrecord.HintPrefixFromHash(hash)
	hints, err := db.GetTxHints(prefix)
	if nil != err {
		return nil, fault.ErrTxNotFound
	}

	for _, key := range hints.Ordered() {
		stx, err := db.GetStoredTx(key, withTxOut)
		if nil != err {
			continue
		}
		if stx.Hash == hash {
			db.hashKeyCache.SetPut(string(hash[:]), key[:])
			return stx, nil
		}
	}
	return nil, fault.ErrTxNotFound
}

// GetTxKeyForHash - resolve a hash to its slot
//
// reads the transaction record, without its outputs
func (db *BlockDatabase) GetTxKeyForHash(hash chainhash.Hash) (schema.TxKey, error) {
	stx, err := db.GetStoredTxByHash(hash, false)
	if nil != err {
		return schema.TxKey{}, err
	}
	return stx.Key, nil
}

// GetStxoCountForTx - number of outputs of a stored transaction
func (db *BlockDatabase) GetStxoCountForTx(key schema.TxKey) (uint16, error) {
	stx, err := db.GetStoredTx(key, false)
	if nil != err {
		return 0, err
	}
	return stx.NumTxOut, nil
}

// GetHashForTxKey - the hash stored at a transaction slot
func (db *BlockDatabase) GetHashForTxKey(key schema.TxKey) (chainhash.Hash, error) {
	stx, err := db.GetStoredTx(key, false)
	if nil != err {
		return chainhash.Hash{}, err
	}
	return stx.Hash, nil
}

// GetTxHints - the hint bucket of one hash prefix
func (db *BlockDatabase) GetTxHints(prefix transactionrecord.HintPrefix) (*transactionrecord.TxHints, error) {
	value := db.get(schema.TxHints, schema.PrefixTxHints.Key(prefix[:]))
	if nil == value {
		return nil, fault.ErrTxHintNotFound
	}
	hints := &transactionrecord.TxHints{Prefix: prefix}
	err := hints.Parse(value)
	if nil != err {
		return nil, err
	}
	return hints, nil
}

func (db *BlockDatabase) putTxHints(hints *transactionrecord.TxHints) {
	db.put(schema.TxHints, schema.PrefixTxHints.Key(hints.Prefix[:]), hints.Serialise())
}

// addTxHint - append a candidate to its bucket if not present
func (db *BlockDatabase) addTxHint(hash chainhash.Hash, key schema.TxKey) error {
	prefix := transactionrecord.HintPrefixFromHash(hash)
	hints, err := db.GetTxHints(prefix)
	if nil != err {
		hints = &transactionrecord.TxHints{Prefix: prefix}
	}
	for _, k := range hints.Keys {
		if k == key {
			return nil
		}
	}
	hints.Keys = append(hints.Keys, key)
	db.putTxHints(hints)
	return nil
}

// UpdatePreferredTxHint - move the preferred pointer of a bucket
//
// the key is appended first when the bucket does not hold it yet
func (db *BlockDatabase) UpdatePreferredTxHint(hash chainhash.Hash, prefer schema.TxKey) error {
	prefix := transactionrecord.HintPrefixFromHash(hash)
	hints, err := db.GetTxHints(prefix)
	if nil != err {
		hints = &transactionrecord.TxHints{Prefix: prefix}
	}
	hints.Prefer(prefer)
	db.putTxHints(hints)
	return nil
}

// PutZeroConfTx - store an unconfirmed transaction
//
// zcIndex is the caller's monotonic sequence number; records live
// under their own prefix, are not entered in the hint table, and are
// removed by SweepZeroConf or DeleteZeroConfTx
func (db *BlockDatabase) PutZeroConfTx(stx *transactionrecord.StoredTx, zcIndex uint32) {
	db.put(schema.BlkData, schema.ZeroConfKey(zcIndex), stx.Serialise())
	if stx.Fragmented {
		for outIndex, stxo := range stx.Outs {
			db.put(schema.BlkData, schema.ZeroConfOutKey(zcIndex, outIndex), stxo.Serialise())
		}
	}
}

// PutZeroConfTxOut - store one output of an unconfirmed transaction
func (db *BlockDatabase) PutZeroConfTxOut(stxo *transactionrecord.StoredTxOut, zcIndex uint32, outIndex uint16) {
	db.put(schema.BlkData, schema.ZeroConfOutKey(zcIndex, outIndex), stxo.Serialise())
}

// GetZeroConfTx - read an unconfirmed transaction
func (db *BlockDatabase) GetZeroConfTx(zcIndex uint32) (*transactionrecord.StoredTx, error) {
	value := db.get(schema.BlkData, schema.ZeroConfKey(zcIndex))
	if nil == value {
		return nil, fault.ErrTxNotFound
	}
	stx := &transactionrecord.StoredTx{}
	err := stx.Parse(value)
	if nil != err {
		return nil, err
	}
	return stx, nil
}

// DeleteZeroConfTx - remove one unconfirmed transaction and outputs
func (db *BlockDatabase) DeleteZeroConfTx(zcIndex uint32) {
	stx, err := db.GetZeroConfTx(zcIndex)
	if nil != err {
		return
	}
	db.remove(schema.BlkData, schema.ZeroConfKey(zcIndex))
	for o := uint16(0); o < stx.NumTxOut; o += 1 {
		db.remove(schema.BlkData, schema.ZeroConfOutKey(zcIndex, o))
	}
}

// SweepZeroConf - drop every unconfirmed record
func (db *BlockDatabase) SweepZeroConf() error {
	iter := db.NewIterator(schema.BlkData)
	defer iter.Release()

	for ok := iter.SeekToPrefix(schema.PrefixZeroConf, nil); ok; ok = iter.AdvanceWithinPrefix(schema.PrefixZeroConf) {
		db.remove(schema.BlkData, iter.Key())
	}
	return nil
}
