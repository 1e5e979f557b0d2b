// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// undoKey - undo records sit on the block coordinate
func undoKey(hgtx schema.Hgtx) []byte {
	return schema.PrefixUndoData.Key(hgtx[:])
}

// PutUndoData - store the undo record of one block
//
// supernode stores every branch and never rolls back, so the record
// is skipped there
func (db *BlockDatabase) PutUndoData(sud *blockrecord.UndoData) {
	if schema.DBTypeSuper == db.dbType {
		return
	}
	db.put(schema.Spentness, undoKey(sud.Hgtx()), sud.Serialise())
}

// GetUndoData - read the undo record of one block
func (db *BlockDatabase) GetUndoData(height uint32, dup uint8) (*blockrecord.UndoData, error) {
	if schema.DBTypeSuper == db.dbType {
		return nil, fault.ErrSpentnessNotTracked
	}
	value := db.get(schema.Spentness, undoKey(schema.HeightAndDupToHgtx(height, dup)))
	if nil == value {
		return nil, fault.ErrUndoDataNotFound
	}
	sud := &blockrecord.UndoData{Height: height, DupID: dup}
	err := sud.Parse(value)
	if nil != err {
		return nil, err
	}
	return sud, nil
}

// DeleteUndoData - drop the undo record of one block
func (db *BlockDatabase) DeleteUndoData(height uint32, dup uint8) {
	db.remove(schema.Spentness, undoKey(schema.HeightAndDupToHgtx(height, dup)))
}

// ComputeUndoDataFromStoredHeader - build the undo record of a block
//
// walks every input of every non-coinbase transaction, resolves the
// prevout and captures its pre-spend record; the block's own outputs
// are captured as newly created so rollback can delete them.  the
// header must carry its transactions
func (db *BlockDatabase) ComputeUndoDataFromStoredHeader(sbh *blockrecord.StoredHeader) (*blockrecord.UndoData, error) {

	if nil == sbh.Txs {
		return nil, fault.ErrInvalidStructure
	}

	sud := &blockrecord.UndoData{
		Height:    sbh.Height,
		DupID:     sbh.DupID,
		BlockHash: sbh.Hash,
	}

	for txIndex := uint16(0); txIndex < uint16(len(sbh.Txs)); txIndex += 1 {
		stx, ok := sbh.Txs[txIndex]
		if !ok {
			return nil, fault.ErrInvalidStructure
		}

		if 0 != txIndex { // coinbase inputs resolve to nothing
			tx, err := stx.Tx()
			if nil != err {
				return nil, err
			}
			for _, txIn := range tx.TxIn {
				prevout := txIn.PreviousOutPoint
				stxo, err := db.ResolveTxOut(prevout.Hash, uint16(prevout.Index))
				if nil != err {
					return nil, err
				}
				sud.SpentOutputs = append(sud.SpentOutputs, stxo)
			}
		}

		for o := uint16(0); o < stx.NumTxOut; o += 1 {
			key := schema.NewTxKey(sbh.Height, sbh.DupID, txIndex).Out(o)
			sud.CreatedOutputs = append(sud.CreatedOutputs, key)
		}
	}
	return sud, nil
}

// ComputeUndoDataForBlock - load a stored block and build its undo
// record
func (db *BlockDatabase) ComputeUndoDataForBlock(height uint32, dup uint8) (*blockrecord.UndoData, error) {
	sbh, err := db.GetStoredHeader(height, dup, true)
	if nil != err {
		return nil, err
	}
	return db.ComputeUndoDataFromStoredHeader(sbh)
}

// ApplyUndoData - roll one block back out of the store
//
// restores the spentness of every output the block consumed, deletes
// the records the block created and removes its transactions from
// the hint table.  history shards for the rolled back coordinate are
// the caller's concern
func (db *BlockDatabase) ApplyUndoData(sud *blockrecord.UndoData) error {

	// restore consumed outputs to their pre-spend record
	for _, stxo := range sud.SpentOutputs {
		db.PutStoredTxOut(stxo)
	}

	// delete everything the block created
	seenTx := make(map[schema.TxKey]bool)
	for _, outKey := range sud.CreatedOutputs {
		db.DeleteStoredTxOut(outKey)
		seenTx[outKey.TxKey()] = true
	}
	for txKey := range seenTx {
		stx, err := db.GetStoredTx(txKey, false)
		if nil != err {
			continue
		}
		err = db.DeleteStoredTx(stx)
		if nil != err {
			return err
		}
	}

	// drop the block level record and the undo record itself
	hgtx := schema.HeightAndDupToHgtx(sud.Height, sud.DupID)
	db.remove(schema.BlkData, blockKey(hgtx))
	db.DeleteUndoData(sud.Height, sud.DupID)

	// the bare header stays, no longer marked applied
	sbh, err := db.GetBareHeaderByHash(sud.BlockHash)
	if nil == err && sbh.Applied {
		sbh.Applied = false
		db.put(schema.Headers, schema.PrefixHeadHash.Key(sbh.Hash[:]), sbh.Serialise())
	}
	return nil
}
