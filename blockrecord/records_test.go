// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

func TestDBInfoRoundTrip(t *testing.T) {
	info := blockrecord.NewDBInfo(
		[4]byte{0xf9, 0xbe, 0xb4, 0xd9},
		schema.DBTypeFull,
		schema.PruneNone,
	)
	assert.Equal(t, blockrecord.InvalidHeight, info.TopBlockHgt)
	assert.Equal(t, chainhash.Hash{}, info.TopBlockHash)

	info.TopBlockHgt = 500000
	info.TopBlockHash[0] = 0xab

	parsed := &blockrecord.DBInfo{}
	require.NoError(t, parsed.Parse(info.Serialise()))
	assert.Equal(t, info, parsed)

	err := parsed.Parse([]byte{1, 2, 3})
	assert.Equal(t, fault.ErrInvalidStructure, err)
}

func TestStoredHeaderRoundTrip(t *testing.T) {
	genesis := chaincfg.MainNetParams.GenesisBlock

	sbh, err := blockrecord.NewStoredHeader(&genesis.Header, 0)
	require.NoError(t, err)
	assert.Equal(t, *chaincfg.MainNetParams.GenesisHash, sbh.Hash)
	assert.Equal(t, chainhash.Hash{}, sbh.PreviousHash())

	sbh.DupID = 1
	sbh.NumTx = 1
	sbh.NumBytes = 285
	sbh.Applied = true

	parsed := &blockrecord.StoredHeader{}
	require.NoError(t, parsed.Parse(sbh.Serialise()))
	assert.Equal(t, sbh.Hash, parsed.Hash)
	assert.Equal(t, sbh.RawHeader, parsed.RawHeader)
	assert.Equal(t, uint32(0), parsed.Height)
	assert.Equal(t, uint8(1), parsed.DupID)
	assert.Equal(t, uint32(1), parsed.NumTx)
	assert.Equal(t, uint32(285), parsed.NumBytes)
	assert.True(t, parsed.Applied)

	header, err := parsed.Header()
	require.NoError(t, err)
	assert.Equal(t, genesis.Header.MerkleRoot, header.MerkleRoot)
}

func TestHeadHgtList(t *testing.T) {
	hashA := chainhash.Hash{0x0a}
	hashB := chainhash.Hash{0x0b}

	hhl := &blockrecord.HeadHgtList{
		Height: 3,
		Entries: []blockrecord.HeadHgtEntry{
			{DupID: 0, Valid: false, Hash: hashA},
			{DupID: 1, Valid: true, Hash: hashB},
		},
	}

	dup, ok := hhl.ValidDupID()
	require.True(t, ok)
	assert.Equal(t, uint8(1), dup)

	next, err := hhl.NextDupID()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), next)

	e, ok := hhl.Find(hashA)
	require.True(t, ok)
	assert.False(t, e.Valid)

	parsed := &blockrecord.HeadHgtList{Height: 3}
	require.NoError(t, parsed.Parse(hhl.Serialise()))
	assert.Equal(t, hhl.Entries, parsed.Entries)

	// flipping the valid flag must clear the old one
	hhl.SetValidDupID(0)
	dup, ok = hhl.ValidDupID()
	require.True(t, ok)
	assert.Equal(t, uint8(0), dup)
	parsed = &blockrecord.HeadHgtList{}
	require.NoError(t, parsed.Parse(hhl.Serialise()))
	dup, ok = parsed.ValidDupID()
	require.True(t, ok)
	assert.Equal(t, uint8(0), dup)
}

func TestHeadHgtListDoubleValid(t *testing.T) {
	// hand-build a corrupt record with two valid flags set
	hhl := &blockrecord.HeadHgtList{
		Entries: []blockrecord.HeadHgtEntry{
			{DupID: 0, Valid: true},
			{DupID: 1, Valid: false},
		},
	}
	data := hhl.Serialise()
	data[1+1+chainhash.HashSize] |= schema.DupIDValidFlag

	parsed := &blockrecord.HeadHgtList{}
	err := parsed.Parse(data)
	assert.Equal(t, fault.ErrDoubleValidDupID, err)
}

func TestUndoDataRoundTrip(t *testing.T) {
	spent := &transactionrecord.StoredTxOut{
		Key:       schema.NewOutKey(90, 0, 1, 0),
		Value:     5000000000,
		Script:    []byte{0x76, 0xa9},
		Spentness: transactionrecord.SpentnessUnspent,
	}

	sud := &blockrecord.UndoData{
		Height:    100,
		DupID:     0,
		BlockHash: chainhash.Hash{0x42},
		SpentOutputs: []*transactionrecord.StoredTxOut{
			spent,
		},
		CreatedOutputs: []schema.OutKey{
			schema.NewOutKey(100, 0, 0, 0),
			schema.NewOutKey(100, 0, 1, 1),
		},
	}

	parsed := &blockrecord.UndoData{Height: 100, DupID: 0}
	require.NoError(t, parsed.Parse(sud.Serialise()))
	assert.Equal(t, sud.BlockHash, parsed.BlockHash)
	assert.Equal(t, sud.SpentOutputs, parsed.SpentOutputs)
	assert.Equal(t, sud.CreatedOutputs, parsed.CreatedOutputs)
}
