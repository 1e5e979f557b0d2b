// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package schema

// Prefix - the first byte of every database key
type Prefix byte

// key prefixes - the on-disk binary contract
const (
	PrefixDBInfo   Prefix = 0x00 // the single per-database info record
	PrefixHeadHash Prefix = 0x01 // header hash → height + dup id
	PrefixHeadHgt  Prefix = 0x02 // height → list of (dup id, header hash)
	PrefixTxData   Prefix = 0x03 // block, tx and txout records by DBKey
	PrefixTxHints  Prefix = 0x04 // 4-byte tx hash prefix → candidate keys
	PrefixScript   Prefix = 0x05 // script history summary by scrAddr
	PrefixSubSSH   Prefix = 0x06 // script history shard by scrAddr + hgtx
	PrefixUndoData Prefix = 0x07 // per-block reorg undo record
	PrefixTrieNode Prefix = 0x08 // reserved

	PrefixCount Prefix = 0x09 // sentinel, never stored

	// zero-confirmation records sort after every confirmed record
	PrefixZeroConf Prefix = 0xff
)

// Valid - check a byte is a usable key prefix
func (p Prefix) Valid() bool {
	return p < PrefixCount || p == PrefixZeroConf
}

// Key - prepend the prefix onto a key tail
func (p Prefix) Key(tail []byte) []byte {
	key := make([]byte, 1, 1+len(tail))
	key[0] = byte(p)
	return append(key, tail...)
}
