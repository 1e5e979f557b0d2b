// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/chain"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/storage"
)

// a fresh database has an invalid top and a zero top hash
func TestEmptyOpen(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	height, hash, err := db.TopBlock()
	require.NoError(t, err)
	assert.Equal(t, blockrecord.InvalidHeight, height)
	assert.Equal(t, chainhash.Hash{}, hash)

	info, err := db.GetDBInfo(schema.Headers)
	require.NoError(t, err)
	assert.Equal(t, schema.DBTypeFull, info.Type)
	assert.Equal(t, schema.PruneNone, info.Prune)
}

// reopening with a different network must be refused
func TestWrongMagicRefused(t *testing.T) {
	dir := t.TempDir()

	regtest, err := chain.Select(chain.Regtest)
	require.NoError(t, err)
	db, err := storage.Open(dir, regtest, schema.DBTypeFull, schema.PruneNone)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	mainnet, err := chain.Select(chain.Main)
	require.NoError(t, err)
	_, err = storage.Open(dir, mainnet, schema.DBTypeFull, schema.PruneNone)
	assert.Equal(t, fault.ErrWrongNetworkMagic, err)

	// and the original network still opens
	db, err = storage.Open(dir, regtest, schema.DBTypeFull, schema.PruneNone)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestWhateverAdoptsStoredType(t *testing.T) {
	dir := t.TempDir()

	params, err := chain.Select(chain.Regtest)
	require.NoError(t, err)
	db, err := storage.Open(dir, params, schema.DBTypeLite, schema.PruneNone)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.Open(dir, params, schema.DBTypeWhatever, schema.PruneWhatever)
	require.NoError(t, err)
	assert.Equal(t, schema.DBTypeLite, db.DBType())
	assert.Equal(t, schema.PruneNone, db.PruneType())
	require.NoError(t, db.Close())

	// an explicit mismatching type is fatal
	_, err = storage.Open(dir, params, schema.DBTypeFull, schema.PruneNone)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	assert.False(t, db.IsOpen())
}

// single genesis insert: dup id 0 becomes valid
func TestSingleGenesisInsert(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	sbh := testHeader(t, 0, 0)
	dup, err := db.PutBareHeader(sbh, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), dup)

	valid, ok := db.GetValidDupIDForHeight(0)
	require.True(t, ok)
	assert.Equal(t, uint8(0), valid)

	read, err := db.GetBareHeader(0, 0)
	require.NoError(t, err)
	assert.Equal(t, sbh.Hash, read.Hash)

	// sentinel dup resolves through the valid table
	read, err = db.GetBareHeader(0, storage.DupSentinel)
	require.NoError(t, err)
	assert.Equal(t, sbh.Hash, read.Hash)
}

// two tips at one height: both stored, dup ids 0 and 1, exactly one
// valid
func TestTwoTipsAtSameHeight(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	tipA := testHeader(t, 3, 0)
	dupA, err := db.PutBareHeader(tipA, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), dupA)

	tipB := testHeader(t, 3, 1)
	require.NotEqual(t, tipA.Hash, tipB.Hash)
	dupB, err := db.PutBareHeader(tipB, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), dupB)

	hhl, err := db.GetHeadHgtList(3)
	require.NoError(t, err)
	require.Len(t, hhl.Entries, 2)

	validCount := 0
	for _, e := range hhl.Entries {
		if e.Valid {
			validCount += 1
		}
	}
	assert.Equal(t, 1, validCount)

	valid, ok := db.GetValidDupIDForHeight(3)
	require.True(t, ok)
	assert.Equal(t, uint8(0), valid)

	// flip validity to the other branch
	require.NoError(t, db.SetValidDupIDForHeight(3, 1, true))
	valid, ok = db.GetValidDupIDForHeight(3)
	require.True(t, ok)
	assert.Equal(t, uint8(1), valid)

	// non-overwrite set is a no-op when a valid entry exists
	require.NoError(t, db.SetValidDupIDForHeight(3, 0, false))
	valid, _ = db.GetValidDupIDForHeight(3)
	assert.Equal(t, uint8(1), valid)

	// dup resolution by hash
	dup, err := db.GetDupForBlockHash(tipB.Hash)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), dup)
}

// re-storing a known hash keeps its dup id
func TestRestoreKnownHeaderKeepsDup(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	sbh := testHeader(t, 7, 0)
	dup, err := db.PutBareHeader(sbh, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), dup)

	again := testHeader(t, 7, 0)
	dup, err = db.PutBareHeader(again, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), dup)

	hhl, err := db.GetHeadHgtList(7)
	require.NoError(t, err)
	assert.Len(t, hhl.Entries, 1)
}

// the valid dup table survives a reopen
func TestValidDupTableReload(t *testing.T) {
	dir := t.TempDir()
	params, err := chain.Select(chain.Regtest)
	require.NoError(t, err)

	db, err := storage.Open(dir, params, schema.DBTypeFull, schema.PruneNone)
	require.NoError(t, err)

	sbh := testHeader(t, 12, 0)
	_, err = db.PutBareHeader(sbh, true)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.Open(dir, params, schema.DBTypeFull, schema.PruneNone)
	require.NoError(t, err)
	defer db.Close()

	valid, ok := db.GetValidDupIDForHeight(12)
	require.True(t, ok)
	assert.Equal(t, uint8(0), valid)
}

func TestBatchDiscipline(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	// commit without begin is an invariant violation
	assert.Equal(t, fault.ErrUnbalancedBatch, db.CommitBatch())

	// nested batches coalesce: the write lands on the outer commit
	db.BeginBatch()
	db.BeginBatch()
	sbh := testHeader(t, 1, 0)
	_, err := db.PutBareHeader(sbh, true)
	require.NoError(t, err)

	// inner commit does not write
	require.NoError(t, db.CommitBatch())
	assert.True(t, db.InBatch())

	// reads inside the batch observe the pending write
	_, err = db.GetBareHeaderByHash(sbh.Hash)
	require.NoError(t, err)

	require.NoError(t, db.CommitBatch())
	assert.False(t, db.InBatch())

	_, err = db.GetBareHeaderByHash(sbh.Hash)
	require.NoError(t, err)
}

func TestBatchAbort(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	db.BeginBatch()
	sbh := testHeader(t, 2, 0)
	_, err := db.PutBareHeader(sbh, true)
	require.NoError(t, err)
	db.AbortBatch()
	assert.False(t, db.InBatch())

	_, err = db.GetBareHeaderByHash(sbh.Hash)
	assert.Equal(t, fault.ErrBlockHeaderNotFound, err)
}

func TestDestroyAndReset(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	storeBlock(t, db, 0, 0, makeCoinbaseTx(5000000000, []byte{0x51}, 1))
	height, _, err := db.TopBlock()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), height)

	require.NoError(t, db.DestroyAndReset())

	height, hash, err := db.TopBlock()
	require.NoError(t, err)
	assert.Equal(t, blockrecord.InvalidHeight, height)
	assert.Equal(t, chainhash.Hash{}, hash)
	_, ok := db.GetValidDupIDForHeight(0)
	assert.False(t, ok)
}

func TestNukeHeaders(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	sbh := storeBlock(t, db, 0, 0, makeCoinbaseTx(5000000000, []byte{0x51}, 2))
	require.NoError(t, db.NukeHeaders())

	_, err := db.GetBareHeaderByHash(sbh.Hash)
	assert.Equal(t, fault.ErrBlockHeaderNotFound, err)

	// block data survives a header nuke
	_, err = db.GetStoredHeader(0, 0, false)
	require.NoError(t, err)
}
