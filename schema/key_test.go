// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package schema_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockvault/blockvaultd/schema"
)

func TestHgtxPacking(t *testing.T) {
	h := schema.HeightAndDupToHgtx(0x00123456, 0x07)
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x07}, h[:])
	assert.Equal(t, uint32(0x00123456), h.Height())
	assert.Equal(t, uint8(0x07), h.DupID())
}

func TestOutKeyFields(t *testing.T) {
	k := schema.NewOutKey(170, 1, 3, 9)
	assert.Equal(t, uint32(170), k.Height())
	assert.Equal(t, uint8(1), k.DupID())
	assert.Equal(t, uint16(3), k.TxIndex())
	assert.Equal(t, uint16(9), k.TxOutIndex())
	assert.Equal(t, schema.NewTxKey(170, 1, 3), k.TxKey())

	parsed, err := schema.OutKeyFromBytes(k[:])
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = schema.OutKeyFromBytes(k[:5])
	assert.Error(t, err)
}

// key ordering must match the natural order of the composite
// coordinate: height, then dup id, then tx index, then txout index
func TestKeyOrdering(t *testing.T) {
	type coord struct {
		height uint32
		dup    uint8
		txi    uint16
		txo    uint16
	}

	coords := []coord{
		{0, 0, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{1, 0, 0, 0},
		{255, 0, 2, 2},
		{255, 0, 3, 0},
		{256, 0, 0, 0},
		{65535, 1, 0, 0},
		{65536, 0, 0, 0},
		{0x00ffffff, 0x7f, 0xffff, 0xffff},
	}

	keys := make([][]byte, len(coords))
	for i, c := range coords {
		k := schema.NewOutKey(c.height, c.dup, c.txi, c.txo)
		keys[i] = append([]byte(nil), k[:]...)
	}

	shuffled := make([][]byte, len(keys))
	copy(shuffled, keys)
	for i, j := range []int{5, 2, 9, 0, 7, 4, 10, 1, 8, 3, 6} {
		shuffled[i] = keys[j]
	}
	sort.Slice(shuffled, func(i, j int) bool {
		return bytes.Compare(shuffled[i], shuffled[j]) < 0
	})

	assert.Equal(t, keys, shuffled)
}

func TestZeroConfKeys(t *testing.T) {
	k := schema.ZeroConfKey(42)
	assert.Equal(t, byte(schema.PrefixZeroConf), k[0])

	// zero-conf records sort after any confirmed txdata key
	confirmed := schema.PrefixTxData.Key(nil)
	assert.True(t, bytes.Compare(k, confirmed) > 0)

	o := schema.ZeroConfOutKey(42, 1)
	assert.Equal(t, k, o[:5])
}

func TestPrefixValidity(t *testing.T) {
	assert.True(t, schema.PrefixDBInfo.Valid())
	assert.True(t, schema.PrefixTrieNode.Valid())
	assert.True(t, schema.PrefixZeroConf.Valid())
	assert.False(t, schema.PrefixCount.Valid())
	assert.False(t, schema.Prefix(0x20).Valid())
}
