// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package schema

import (
	"encoding/binary"

	"github.com/blockvault/blockvaultd/fault"
)

// field widths
const (
	HgtxLength   = 4 // packed (height, dup id)
	TxKeyLength  = 6 // hgtx ‖ tx index
	OutKeyLength = 8 // hgtx ‖ tx index ‖ txout index

	// height is packed into 24 bits
	MaxHeight = 0x00ffffff

	// the high bit of a stored dup id byte marks the valid branch
	DupIDValidFlag = 0x80
	MaxDupID       = 0x7f
)

// Hgtx - packed (height, dup id) key fragment, big-endian
type Hgtx [HgtxLength]byte

// TxKey - canonical 6-byte key of a transaction slot
type TxKey [TxKeyLength]byte

// OutKey - canonical 8-byte key of a transaction output slot
type OutKey [OutKeyLength]byte

// HeightAndDupToHgtx - pack height and dup id
//
// heights above MaxHeight cannot be represented: only the low 24 bits
// of the height are kept, without any error
func HeightAndDupToHgtx(height uint32, dupID uint8) Hgtx {
	var h Hgtx
	h[0] = byte(height >> 16)
	h[1] = byte(height >> 8)
	h[2] = byte(height)
	h[3] = dupID
	return h
}

// Height - the height packed into an hgtx
func (h Hgtx) Height() uint32 {
	return uint32(h[0])<<16 | uint32(h[1])<<8 | uint32(h[2])
}

// DupID - the dup id packed into an hgtx
func (h Hgtx) DupID() uint8 {
	return h[3]
}

// HgtxFromBytes - parse a 4-byte fragment
func HgtxFromBytes(b []byte) (Hgtx, error) {
	var h Hgtx
	if len(b) != HgtxLength {
		return h, fault.ErrInvalidDBKey
	}
	copy(h[:], b)
	return h, nil
}

// NewTxKey - compose the key of a transaction slot
func NewTxKey(height uint32, dupID uint8, txIndex uint16) TxKey {
	var k TxKey
	hgtx := HeightAndDupToHgtx(height, dupID)
	copy(k[:HgtxLength], hgtx[:])
	binary.BigEndian.PutUint16(k[HgtxLength:], txIndex)
	return k
}

// TxKeyFromBytes - parse a 6-byte transaction key
func TxKeyFromBytes(b []byte) (TxKey, error) {
	var k TxKey
	if len(b) != TxKeyLength {
		return k, fault.ErrInvalidDBKey
	}
	copy(k[:], b)
	return k, nil
}

// Hgtx - the block fragment of a transaction key
func (k TxKey) Hgtx() Hgtx {
	var h Hgtx
	copy(h[:], k[:HgtxLength])
	return h
}

// Height - block height of the slot
func (k TxKey) Height() uint32 {
	return k.Hgtx().Height()
}

// DupID - dup id of the slot
func (k TxKey) DupID() uint8 {
	return k[3]
}

// TxIndex - index of the transaction within its block
func (k TxKey) TxIndex() uint16 {
	return binary.BigEndian.Uint16(k[HgtxLength:])
}

// Out - extend to a txout slot key
func (k TxKey) Out(txOutIndex uint16) OutKey {
	var o OutKey
	copy(o[:TxKeyLength], k[:])
	binary.BigEndian.PutUint16(o[TxKeyLength:], txOutIndex)
	return o
}

// NewOutKey - compose the key of a transaction output slot
func NewOutKey(height uint32, dupID uint8, txIndex uint16, txOutIndex uint16) OutKey {
	return NewTxKey(height, dupID, txIndex).Out(txOutIndex)
}

// OutKeyFromBytes - parse an 8-byte output key
func OutKeyFromBytes(b []byte) (OutKey, error) {
	var k OutKey
	if len(b) != OutKeyLength {
		return k, fault.ErrInvalidDBKey
	}
	copy(k[:], b)
	return k, nil
}

// TxKey - the transaction slot this output belongs to
func (k OutKey) TxKey() TxKey {
	var t TxKey
	copy(t[:], k[:TxKeyLength])
	return t
}

// Height - block height of the slot
func (k OutKey) Height() uint32 {
	return k.TxKey().Height()
}

// DupID - dup id of the slot
func (k OutKey) DupID() uint8 {
	return k[3]
}

// TxIndex - index of the transaction within its block
func (k OutKey) TxIndex() uint16 {
	return k.TxKey().TxIndex()
}

// TxOutIndex - index of the output within its transaction
func (k OutKey) TxOutIndex() uint16 {
	return binary.BigEndian.Uint16(k[TxKeyLength:])
}

// HeightKey - 4-byte big-endian height, used under PrefixHeadHgt
func HeightKey(height uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, height)
	return key
}

// ZeroConfKey - key of an unconfirmed transaction record
//
// the zc index is a caller supplied monotonic sequence number; records
// never collide with confirmed data because of the distinct prefix
func ZeroConfKey(zcIndex uint32) []byte {
	key := make([]byte, 5)
	key[0] = byte(PrefixZeroConf)
	binary.BigEndian.PutUint32(key[1:], zcIndex)
	return key
}

// ZeroConfOutKey - key of one output of an unconfirmed transaction
func ZeroConfOutKey(zcIndex uint32, txOutIndex uint16) []byte {
	key := make([]byte, 7)
	key[0] = byte(PrefixZeroConf)
	binary.BigEndian.PutUint32(key[1:], zcIndex)
	binary.BigEndian.PutUint16(key[5:], txOutIndex)
	return key
}
