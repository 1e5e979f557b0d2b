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

// PutStoredTxOut - store one output record under its 8-byte key
func (db *BlockDatabase) PutStoredTxOut(stxo *transactionrecord.StoredTxOut) {
	db.put(schema.BlkData, outKeyFor(stxo.Key), stxo.Serialise())
}

// GetStoredTxOut - read one output record
func (db *BlockDatabase) GetStoredTxOut(key schema.OutKey) (*transactionrecord.StoredTxOut, error) {
	value := db.get(schema.BlkData, outKeyFor(key))
	if nil == value {
		return nil, fault.ErrTxOutNotFound
	}
	stxo := &transactionrecord.StoredTxOut{Key: key}
	err := stxo.Parse(value)
	if nil != err {
		return nil, err
	}
	return stxo, nil
}

// DeleteStoredTxOut - remove one output record
func (db *BlockDatabase) DeleteStoredTxOut(key schema.OutKey) {
	db.remove(schema.BlkData, outKeyFor(key))
}

// MarkTxOutSpent - update spentness in place
//
// spentBy is the slot of the consuming input's transaction extended
// with the input index
func (db *BlockDatabase) MarkTxOutSpent(key schema.OutKey, spentBy schema.OutKey) (*transactionrecord.StoredTxOut, error) {
	stxo, err := db.GetStoredTxOut(key)
	if nil != err {
		return nil, err
	}
	stxo.Spentness = transactionrecord.SpentnessSpent
	stxo.SpentBy = spentBy
	db.PutStoredTxOut(stxo)
	return stxo, nil
}

// MarkTxOutUnspent - reverse a spend during rollback
func (db *BlockDatabase) MarkTxOutUnspent(key schema.OutKey) error {
	stxo, err := db.GetStoredTxOut(key)
	if nil != err {
		return err
	}
	stxo.Spentness = transactionrecord.SpentnessUnspent
	stxo.SpentBy = schema.OutKey{}
	db.PutStoredTxOut(stxo)
	return nil
}

// ResolveTxOut - locate an output by its transaction hash and index
//
// this is the prevout resolution used when spending blocks arrive
func (db *BlockDatabase) ResolveTxOut(txHash chainhash.Hash, outIndex uint16) (*transactionrecord.StoredTxOut, error) {
	txKey, err := db.GetTxKeyForHash(txHash)
	if nil != err {
		return nil, fault.ErrTxOutNotFound
	}
	return db.GetStoredTxOut(txKey.Out(outIndex))
}
