// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// HeadHgtEntry - one competing header at a height
type HeadHgtEntry struct {
	DupID uint8
	Valid bool
	Hash  chainhash.Hash
}

// HeadHgtList - every header observed at one height
//
// at most one entry carries the valid flag
type HeadHgtList struct {
	Height  uint32
	Entries []HeadHgtEntry
}

// ValidDupID - the dup id currently marked valid
//
// second result is false when no entry is valid yet
func (hhl *HeadHgtList) ValidDupID() (uint8, bool) {
	for _, e := range hhl.Entries {
		if e.Valid {
			return e.DupID, true
		}
	}
	return 0, false
}

// SetValidDupID - move the valid flag to one dup id
func (hhl *HeadHgtList) SetValidDupID(dupID uint8) {
	for i := range hhl.Entries {
		hhl.Entries[i].Valid = hhl.Entries[i].DupID == dupID
	}
}

// NextDupID - the smallest dup id not yet present at this height
func (hhl *HeadHgtList) NextDupID() (uint8, error) {
	used := make(map[uint8]bool, len(hhl.Entries))
	for _, e := range hhl.Entries {
		used[e.DupID] = true
	}
	for d := uint8(0); d <= schema.MaxDupID; d += 1 {
		if !used[d] {
			return d, nil
		}
	}
	return 0, fault.ErrDupIDExhausted
}

// Find - entry for a specific header hash
func (hhl *HeadHgtList) Find(hash chainhash.Hash) (HeadHgtEntry, bool) {
	for _, e := range hhl.Entries {
		if e.Hash == hash {
			return e, true
		}
	}
	return HeadHgtEntry{}, false
}

// Serialise - pack the height list
//
// layout: varint count then per entry dup(1, high bit = valid) ‖
// hash(32)
func (hhl *HeadHgtList) Serialise() []byte {
	w := codec.NewWriterSize(1 + len(hhl.Entries)*(1+chainhash.HashSize))
	w.PutVarInt(uint64(len(hhl.Entries)))
	for _, e := range hhl.Entries {
		dup := e.DupID
		if e.Valid {
			dup |= schema.DupIDValidFlag
		}
		w.PutUint8(dup)
		w.PutBytes(e.Hash[:])
	}
	return w.Bytes()
}

// Parse - unpack a height list
//
// two valid entries in one record is a stored invariant violation
func (hhl *HeadHgtList) Parse(data []byte) error {
	r := codec.NewReader(data)
	count, err := r.GetVarInt()
	if nil != err {
		return err
	}
	entries := make([]HeadHgtEntry, 0, count)
	seenValid := false
	for i := uint64(0); i < count; i += 1 {
		dup, err := r.GetUint8()
		if nil != err {
			return fault.ErrTruncatedInput
		}
		hashBytes, err := r.GetBytesRef(chainhash.HashSize)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		e := HeadHgtEntry{
			DupID: dup &^ schema.DupIDValidFlag,
			Valid: 0 != dup&schema.DupIDValidFlag,
		}
		copy(e.Hash[:], hashBytes)
		if e.Valid {
			if seenValid {
				return fault.ErrDoubleValidDupID
			}
			seenValid = true
		}
		entries = append(entries, e)
	}
	hhl.Entries = entries
	return nil
}
