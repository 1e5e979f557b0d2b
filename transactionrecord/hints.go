// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// HintPrefixLength - tx hashes are bucketed by their first four bytes
const HintPrefixLength = 4

// HintPrefix - the hash prefix that names a hint bucket
type HintPrefix [HintPrefixLength]byte

// HintPrefixFromHash - bucket of a full transaction hash
func HintPrefixFromHash(hash chainhash.Hash) HintPrefix {
	var p HintPrefix
	copy(p[:], hash[:HintPrefixLength])
	return p
}

// TxHints - candidate transaction slots sharing a hash prefix
//
// collisions are expected; a lookup walks the candidates and compares
// full hashes.  the preferred index points at the candidate walked
// first; it moves only through Prefer
type TxHints struct {
	Prefix    HintPrefix
	Keys      []schema.TxKey
	Preferred uint32
}

// Ordered - candidate keys with the preferred one first
func (hints *TxHints) Ordered() []schema.TxKey {
	if int(hints.Preferred) >= len(hints.Keys) || 0 == hints.Preferred {
		return hints.Keys
	}
	ordered := make([]schema.TxKey, 0, len(hints.Keys))
	ordered = append(ordered, hints.Keys[hints.Preferred])
	for i, k := range hints.Keys {
		if uint32(i) != hints.Preferred {
			ordered = append(ordered, k)
		}
	}
	return ordered
}

// Prefer - point the preferred index at a key, appending if new
func (hints *TxHints) Prefer(key schema.TxKey) {
	for i, k := range hints.Keys {
		if k == key {
			hints.Preferred = uint32(i)
			return
		}
	}
	hints.Keys = append(hints.Keys, key)
	hints.Preferred = uint32(len(hints.Keys) - 1)
}

// Remove - drop a candidate key, adjusting the preferred index
func (hints *TxHints) Remove(key schema.TxKey) bool {
	for i, k := range hints.Keys {
		if k == key {
			hints.Keys = append(hints.Keys[:i], hints.Keys[i+1:]...)
			if hints.Preferred >= uint32(len(hints.Keys)) {
				hints.Preferred = 0
			}
			return true
		}
	}
	return false
}

// Serialise - pack the hint bucket
//
// layout: varint count ‖ key(6) each ‖ varint preferred index
func (hints *TxHints) Serialise() []byte {
	w := codec.NewWriterSize(2 + len(hints.Keys)*schema.TxKeyLength)
	w.PutVarInt(uint64(len(hints.Keys)))
	for _, k := range hints.Keys {
		w.PutBytes(k[:])
	}
	w.PutVarInt(uint64(hints.Preferred))
	return w.Bytes()
}

// Parse - unpack a hint bucket
func (hints *TxHints) Parse(data []byte) error {
	r := codec.NewReader(data)
	count, err := r.GetVarInt()
	if nil != err {
		return err
	}
	keys := make([]schema.TxKey, 0, count)
	for i := uint64(0); i < count; i += 1 {
		raw, err := r.GetBytesRef(schema.TxKeyLength)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		k, _ := schema.TxKeyFromBytes(raw)
		keys = append(keys, k)
	}
	preferred, err := r.GetVarInt()
	if nil != err {
		return err
	}
	if preferred != 0 && preferred >= uint64(len(keys)) {
		return fault.ErrInvalidStructure
	}
	hints.Keys = keys
	hints.Preferred = uint32(preferred)
	if 0 != r.Remaining() {
		return fault.ErrInvalidStructure
	}
	return nil
}
