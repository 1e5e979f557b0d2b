// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// PutBareHeader - store a header without block payload
//
// assigns and returns the dup id: a fresh height gets dup 0, a
// collision gets the next unused id.  re-storing a known hash keeps
// its id.  with updateDupID the stored id becomes the valid one
func (db *BlockDatabase) PutBareHeader(sbh *blockrecord.StoredHeader, updateDupID bool) (uint8, error) {

	hhl, err := db.GetHeadHgtList(sbh.Height)
	if nil != err {
		hhl = &blockrecord.HeadHgtList{Height: sbh.Height}
	}

	entry, known := hhl.Find(sbh.Hash)
	if known {
		sbh.DupID = entry.DupID
	} else {
		dup, err := hhl.NextDupID()
		if nil != err {
			return 0, err
		}
		sbh.DupID = dup
		hhl.Entries = append(hhl.Entries, blockrecord.HeadHgtEntry{
			DupID: dup,
			Hash:  sbh.Hash,
		})
	}

	_, hasValid := hhl.ValidDupID()
	if updateDupID || !hasValid {
		hhl.SetValidDupID(sbh.DupID)
		db.Lock()
		db.validDup[sbh.Height] = sbh.DupID
		db.Unlock()
	}

	db.putHeadHgtList(hhl)
	db.put(schema.Headers, schema.PrefixHeadHash.Key(sbh.Hash[:]), sbh.Serialise())
	return sbh.DupID, nil
}

// GetBareHeaderByHash - header lookup by hash, no payload
func (db *BlockDatabase) GetBareHeaderByHash(hash chainhash.Hash) (*blockrecord.StoredHeader, error) {
	value := db.get(schema.Headers, schema.PrefixHeadHash.Key(hash[:]))
	if nil == value {
		return nil, fault.ErrBlockHeaderNotFound
	}
	sbh := &blockrecord.StoredHeader{}
	err := sbh.Parse(value)
	if nil != err {
		return nil, err
	}
	if sbh.Hash != hash {
		return nil, fault.ErrInvalidStructure
	}
	return sbh, nil
}

// GetBareHeader - header lookup by coordinate, no payload
//
// DupSentinel selects the valid dup id at the height
func (db *BlockDatabase) GetBareHeader(height uint32, dup uint8) (*blockrecord.StoredHeader, error) {
	if DupSentinel == dup {
		valid, ok := db.GetValidDupIDForHeight(height)
		if !ok {
			return nil, fault.ErrBlockHeaderNotFound
		}
		dup = valid
	}
	hhl, err := db.GetHeadHgtList(height)
	if nil != err {
		return nil, fault.ErrBlockHeaderNotFound
	}
	for _, e := range hhl.Entries {
		if e.DupID == dup {
			return db.GetBareHeaderByHash(e.Hash)
		}
	}
	return nil, fault.ErrBlockHeaderNotFound
}

// PutStoredHeader - store a header, optionally with its block payload
//
// the payload covers the block level record plus every transaction
// and output; everything goes through the current batch
func (db *BlockDatabase) PutStoredHeader(sbh *blockrecord.StoredHeader, withBlkData bool, updateDupID bool) (uint8, error) {

	sbh.Applied = withBlkData

	dup, err := db.PutBareHeader(sbh, updateDupID)
	if nil != err {
		return 0, err
	}

	if !withBlkData {
		return dup, nil
	}

	db.put(schema.BlkData, blockKey(sbh.Hgtx()), sbh.Serialise())

	for txIndex, stx := range sbh.Txs {
		stx.Key = schema.NewTxKey(sbh.Height, dup, txIndex)
		err = db.PutStoredTx(stx, true)
		if nil != err {
			return 0, err
		}
	}
	return dup, nil
}

// blockKey - the block level record sits on the 4-byte hgtx alone
func blockKey(hgtx schema.Hgtx) []byte {
	return schema.PrefixTxData.Key(hgtx[:])
}

// GetStoredHeader - read a header and optionally its block payload
//
// DupSentinel selects the valid dup id at the height.  with withTx
// the child transactions and their outputs are materialised by a
// prefix scan
func (db *BlockDatabase) GetStoredHeader(height uint32, dup uint8, withTx bool) (*blockrecord.StoredHeader, error) {
	if DupSentinel == dup {
		valid, ok := db.GetValidDupIDForHeight(height)
		if !ok {
			return nil, fault.ErrBlockNotFound
		}
		dup = valid
	}

	hgtx := schema.HeightAndDupToHgtx(height, dup)
	value := db.get(schema.BlkData, blockKey(hgtx))
	if nil == value {
		return nil, fault.ErrBlockNotFound
	}
	sbh := &blockrecord.StoredHeader{}
	err := sbh.Parse(value)
	if nil != err {
		return nil, err
	}

	if !withTx {
		return sbh, nil
	}

	sbh.Txs = make(map[uint16]*transactionrecord.StoredTx)

	iter := db.NewIterator(schema.BlkData)
	defer iter.Release()

	prefix := schema.PrefixTxData.Key(hgtx[:])
	for ok := iter.SeekToStartsWith(prefix); ok; ok = iter.AdvanceWithinPrefix(schema.PrefixTxData) {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		tail := key[1:]
		switch len(tail) {
		case schema.HgtxLength:
			// the block level record itself

		case schema.TxKeyLength:
			txKey, _ := schema.TxKeyFromBytes(tail)
			stx := &transactionrecord.StoredTx{Key: txKey}
			err = stx.Parse(iter.Value())
			if nil != err {
				return nil, err
			}
			stx.Outs = make(map[uint16]*transactionrecord.StoredTxOut)
			sbh.Txs[txKey.TxIndex()] = stx

		case schema.OutKeyLength:
			outKey, _ := schema.OutKeyFromBytes(tail)
			stxo := &transactionrecord.StoredTxOut{Key: outKey}
			err = stxo.Parse(iter.Value())
			if nil != err {
				return nil, err
			}
			stx, ok := sbh.Txs[outKey.TxIndex()]
			if !ok {
				return nil, fault.ErrInvalidStructure
			}
			stx.Outs[outKey.TxOutIndex()] = stxo

		default:
			return nil, fault.ErrInvalidDBKey
		}
	}

	return sbh, nil
}

// GetStoredHeaderByHash - block lookup by header hash
func (db *BlockDatabase) GetStoredHeaderByHash(hash chainhash.Hash, withTx bool) (*blockrecord.StoredHeader, error) {
	bare, err := db.GetBareHeaderByHash(hash)
	if nil != err {
		return nil, err
	}
	return db.GetStoredHeader(bare.Height, bare.DupID, withTx)
}

// PutRawBlock - decode and store one raw block
//
// heightOf resolves the block's height from its hash.  returns the
// stored header with its transactions attached
func (db *BlockDatabase) PutRawBlock(raw []byte, heightOf func(chainhash.Hash) (uint32, error)) (*blockrecord.StoredHeader, error) {

	block := &wire.MsgBlock{}
	err := block.Deserialize(bytes.NewReader(raw))
	if nil != err {
		return nil, fault.ErrInvalidStructure
	}

	hash := block.BlockHash()
	height, err := heightOf(hash)
	if nil != err {
		return nil, err
	}

	sbh, err := blockrecord.NewStoredHeader(&block.Header, height)
	if nil != err {
		return nil, err
	}
	sbh.NumTx = uint32(len(block.Transactions))
	sbh.NumBytes = uint32(len(raw))
	sbh.Txs = make(map[uint16]*transactionrecord.StoredTx)

	for i, tx := range block.Transactions {
		stx, err := transactionrecord.NewStoredTx(tx, schema.TxKey{}, true)
		if nil != err {
			return nil, err
		}
		stx.Outs = make(map[uint16]*transactionrecord.StoredTxOut)
		for o, txOut := range tx.TxOut {
			stx.Outs[uint16(o)] = &transactionrecord.StoredTxOut{
				Value:      uint64(txOut.Value),
				Script:     txOut.PkScript,
				Spentness:  transactionrecord.SpentnessUnspent,
				IsCoinbase: 0 == i,
				HasParent:  true,
				ParentHash: stx.Hash,
			}
		}
		sbh.Txs[uint16(i)] = stx
	}

	_, err = db.PutStoredHeader(sbh, true, true)
	if nil != err {
		return nil, err
	}
	return sbh, nil
}

// ReadAllHeaders - walk every bare header in hash order
func (db *BlockDatabase) ReadAllHeaders(callback func(*blockrecord.StoredHeader) error) error {
	iter := db.NewIterator(schema.Headers)
	defer iter.Release()

	for ok := iter.SeekToPrefix(schema.PrefixHeadHash, nil); ok; ok = iter.AdvanceWithinPrefix(schema.PrefixHeadHash) {
		sbh := &blockrecord.StoredHeader{}
		err := sbh.Parse(iter.Value())
		if nil != err {
			return err
		}
		err = callback(sbh)
		if nil != err {
			return err
		}
	}
	return nil
}

// GetHeaderMap - every bare header keyed by hash
func (db *BlockDatabase) GetHeaderMap() (map[chainhash.Hash]*blockrecord.StoredHeader, error) {
	headers := make(map[chainhash.Hash]*blockrecord.StoredHeader)
	err := db.ReadAllHeaders(func(sbh *blockrecord.StoredHeader) error {
		headers[sbh.Hash] = sbh
		return nil
	})
	if nil != err {
		return nil, err
	}
	return headers, nil
}

// GetRawHeader - the 80 raw bytes of a header
func (db *BlockDatabase) GetRawHeader(hash chainhash.Hash) ([]byte, error) {
	sbh, err := db.GetBareHeaderByHash(hash)
	if nil != err {
		return nil, err
	}
	raw := make([]byte, blockrecord.HeaderLength)
	copy(raw, sbh.RawHeader[:])
	return raw, nil
}
