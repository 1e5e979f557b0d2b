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
	"github.com/blockvault/blockvaultd/scripthistory"
	"github.com/blockvault/blockvaultd/storage"
)

var testScript = append(append([]byte{0x76, 0xa9, 0x14},
	[]byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}...),
	0x88, 0xac)

// reference history: received at 100, 150, 200 and spent at 175
func storeReferenceHistory(t *testing.T, db *storage.BlockDatabase) scripthistory.ScrAddr {
	t.Helper()

	scrAddr := scripthistory.FromScript(testScript)
	ssh := scripthistory.NewHistory(scrAddr)

	received := []struct {
		height uint32
		txi    uint16
		value  uint64
	}{
		{100, 1, 1000},
		{150, 2, 2000},
		{200, 3, 3000},
	}
	for _, r := range received {
		sub := ssh.Shard(schema.HeightAndDupToHgtx(r.height, 0), true)
		sub.Insert(scripthistory.Txio{
			Key:   schema.NewOutKey(r.height, 0, r.txi, 0),
			Kind:  scripthistory.TxioReceived,
			Value: r.value,
		})
	}

	// the 150-height output is spent at height 175
	spend := ssh.Shard(schema.HeightAndDupToHgtx(175, 0), true)
	spend.Insert(scripthistory.Txio{
		Key:   schema.NewOutKey(150, 0, 2, 0),
		Kind:  scripthistory.TxioSpent,
		Value: 2000,
	})

	ssh.AlreadyScannedUpTo = 200
	ssh.Recount()

	db.BeginBatch()
	db.PutScriptHistory(ssh)
	require.NoError(t, db.CommitBatch())
	return scrAddr
}

func TestScriptHistoryRangeQuery(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)
	scrAddr := storeReferenceHistory(t, db)

	// the range [0, 180] holds exactly the shards at 100, 150, 175
	ssh, err := db.GetScriptHistory(scrAddr, 0, 180)
	require.NoError(t, err)
	shards := ssh.OrderedShards()
	require.Len(t, shards, 3)
	assert.Equal(t, uint32(100), shards[0].Hgtx.Height())
	assert.Equal(t, uint32(150), shards[1].Hgtx.Height())
	assert.Equal(t, uint32(175), shards[2].Hgtx.Height())

	// summary totals cover the whole history
	assert.Equal(t, uint64(4), ssh.TotalTxioCount)
	assert.Equal(t, uint64(4000), ssh.TotalUnspent)

	// bounds are inclusive on both sides
	ssh, err = db.GetScriptHistory(scrAddr, 150, 175)
	require.NoError(t, err)
	shards = ssh.OrderedShards()
	require.Len(t, shards, 2)
	assert.Equal(t, uint32(150), shards[0].Hgtx.Height())
	assert.Equal(t, uint32(175), shards[1].Hgtx.Height())

	// full range sees all four
	ssh, err = db.GetScriptHistory(scrAddr, 0, schema.MaxHeight)
	require.NoError(t, err)
	assert.Len(t, ssh.OrderedShards(), 4)
}

func TestScriptHistorySummaryAlone(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)
	scrAddr := storeReferenceHistory(t, db)

	ssh, err := db.GetScriptHistorySummary(scrAddr)
	require.NoError(t, err)
	assert.Empty(t, ssh.Shards)
	assert.Equal(t, uint32(200), ssh.AlreadyScannedUpTo)
	assert.True(t, ssh.UseMultipleEntries)

	balance, err := db.GetBalanceForScrAddr(scrAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(4000), balance)

	var unknown scripthistory.ScrAddr
	unknown[1] = 0x77
	_, err = db.GetScriptHistorySummary(unknown)
	assert.Equal(t, fault.ErrScriptHistoryNotFound, err)
}

func TestFetchSubHistory(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)
	scrAddr := storeReferenceHistory(t, db)

	ssh, err := db.GetScriptHistorySummary(scrAddr)
	require.NoError(t, err)

	hgtx := schema.HeightAndDupToHgtx(100, 0)
	sub, err := db.FetchSubHistory(ssh, hgtx, false, false)
	require.NoError(t, err)
	require.Len(t, sub.Txios, 1)
	assert.Equal(t, uint64(1000), sub.Txios[0].Value)

	// a missing shard errors without create
	missing := schema.HeightAndDupToHgtx(999, 0)
	_, err = db.FetchSubHistory(ssh, missing, false, false)
	assert.Equal(t, fault.ErrScriptHistoryNotFound, err)

	// and is created empty with create
	sub, err = db.FetchSubHistory(ssh, missing, true, false)
	require.NoError(t, err)
	assert.Empty(t, sub.Txios)

	// force re-read replaces a locally modified shard
	resident := ssh.Shard(hgtx, false)
	resident.Insert(scripthistory.Txio{
		Key:  schema.NewOutKey(100, 0, 9, 9),
		Kind: scripthistory.TxioReceived,
	})
	require.Len(t, resident.Txios, 2)
	sub, err = db.FetchSubHistory(ssh, hgtx, false, true)
	require.NoError(t, err)
	assert.Len(t, sub.Txios, 1)
}

func TestGetSSHSummary(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)
	scrAddr := storeReferenceHistory(t, db)

	summary, err := db.GetSSHSummary(scrAddr, 180)
	require.NoError(t, err)
	assert.Equal(t, map[uint32]uint32{100: 1, 150: 1, 175: 1}, summary)
}

func TestRegisteredScripts(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)

	scrAddr := db.AddRegisteredScript(testScript, 0)
	assert.Equal(t, scripthistory.FromScript(testScript), scrAddr)

	// re-registration keeps the existing record
	ssh, err := db.GetScriptHistorySummary(scrAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), ssh.AlreadyScannedUpTo)
	db.AddRegisteredScript(testScript, 55)
	ssh, err = db.GetScriptHistorySummary(scrAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), ssh.AlreadyScannedUpTo)

	scrAddrs, err := db.RegisteredScrAddrs()
	require.NoError(t, err)
	require.Len(t, scrAddrs, 1)
	assert.Equal(t, scrAddr, scrAddrs[0])
}

func TestFullUTXOMap(t *testing.T) {
	db := openTestDB(t, schema.DBTypeFull)
	scrAddr := storeReferenceHistory(t, db)

	utxos, err := db.GetFullUTXOMapForSSH(scrAddr, false)
	require.NoError(t, err)

	// outputs at 100 and 200 remain; 150 was spent at 175
	require.Len(t, utxos, 2)
	assert.Equal(t, uint64(1000), utxos[schema.NewOutKey(100, 0, 1, 0)])
	assert.Equal(t, uint64(3000), utxos[schema.NewOutKey(200, 0, 3, 0)])
}
