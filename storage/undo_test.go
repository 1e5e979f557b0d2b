// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// applying a block then its undo data restores the prior state
func TestUndoIsInverse(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	// block 0: coinbase creating the output that will be spent
	cb := makeCoinbaseTx(5000000000, []byte{0x51}, 31)
	sbh0 := storeBlock(t, db, 0, 0, cb)

	prevOutKey := schema.NewOutKey(0, 0, 0, 0)

	// block 1: spends the block 0 coinbase
	cb1 := makeCoinbaseTx(5000000000, []byte{0x53}, 32)
	spend := makeSpendTx(cb.TxHash(), 0, 4999999000, []byte{0x52})

	db.BeginBatch()
	sbh := buildBlock(t, 1, 0, cb1, spend)
	_, err := db.PutStoredHeader(sbh, true, true)
	require.NoError(t, err)

	sud, err := db.ComputeUndoDataFromStoredHeader(sbh)
	require.NoError(t, err)
	require.Len(t, sud.SpentOutputs, 1)
	assert.Equal(t, prevOutKey, sud.SpentOutputs[0].Key)
	assert.Len(t, sud.CreatedOutputs, 2)

	// apply the spend and persist the undo record
	_, err = db.MarkTxOutSpent(prevOutKey, schema.NewOutKey(1, 0, 1, 0))
	require.NoError(t, err)
	db.PutUndoData(sud)
	require.NoError(t, db.SetTopBlock(1, sbh.Hash))
	require.NoError(t, db.CommitBatch())

	// the prevout is now spent and block 1 is readable
	stxo, err := db.GetStoredTxOut(prevOutKey)
	require.NoError(t, err)
	assert.Equal(t, transactionrecord.SpentnessSpent, stxo.Spentness)
	_, err = db.GetStoredTxByHash(spend.TxHash(), false)
	require.NoError(t, err)

	// roll block 1 back out
	loaded, err := db.GetUndoData(1, 0)
	require.NoError(t, err)

	db.BeginBatch()
	require.NoError(t, db.ApplyUndoData(loaded))
	require.NoError(t, db.SetTopBlock(0, sbh0.Hash))
	require.NoError(t, db.CommitBatch())

	// prevout restored to unspent
	stxo, err = db.GetStoredTxOut(prevOutKey)
	require.NoError(t, err)
	assert.Equal(t, transactionrecord.SpentnessUnspent, stxo.Spentness)

	// block 1 records are gone, including the hint entries
	_, err = db.GetStoredTxByHash(spend.TxHash(), false)
	assert.Equal(t, fault.ErrTxNotFound, err)
	_, err = db.GetStoredTx(schema.NewTxKey(1, 0, 0), false)
	assert.Equal(t, fault.ErrTxNotFound, err)
	_, err = db.GetStoredTxOut(schema.NewOutKey(1, 0, 1, 0))
	assert.Equal(t, fault.ErrTxOutNotFound, err)
	_, err = db.GetStoredHeader(1, 0, false)
	assert.Equal(t, fault.ErrBlockNotFound, err)

	// the undo record consumed itself
	_, err = db.GetUndoData(1, 0)
	assert.Equal(t, fault.ErrUndoDataNotFound, err)

	// block 0 is untouched
	_, err = db.GetStoredTxByHash(cb.TxHash(), false)
	require.NoError(t, err)
}

func TestUndoDataSkippedInSupernode(t *testing.T) {
	db := openTestDB(t, schema.DBTypeSuper)

	cb := makeCoinbaseTx(5000000000, []byte{0x51}, 41)
	sbh := storeBlock(t, db, 0, 0, cb)

	sud, err := db.ComputeUndoDataFromStoredHeader(sbh)
	require.NoError(t, err)

	db.PutUndoData(sud)
	_, err = db.GetUndoData(0, 0)
	assert.Equal(t, fault.ErrSpentnessNotTracked, err)
}

func TestComputeUndoForStoredBlock(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	cb := makeCoinbaseTx(5000000000, []byte{0x51}, 51)
	storeBlock(t, db, 0, 0, cb)

	sud, err := db.ComputeUndoDataForBlock(0, 0)
	require.NoError(t, err)
	assert.Empty(t, sud.SpentOutputs)
	assert.Len(t, sud.CreatedOutputs, 1)
}
