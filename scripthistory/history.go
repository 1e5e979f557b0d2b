// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scripthistory

import (
	"encoding/binary"
	"sort"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// history flag bits
const (
	flagMultipleEntries = 0x01
)

// ScannedUpToUnknown - this script has never been scanned
const ScannedUpToUnknown uint32 = 0xffffffff

// History - the summary record of one script address
//
// the summary is stored without its shards so a hot address never
// produces an oversized value; shards are merged in per query range
type History struct {
	ScrAddr            ScrAddr
	AlreadyScannedUpTo uint32
	TotalTxioCount     uint64
	TotalUnspent       uint64
	UseMultipleEntries bool

	Shards map[schema.Hgtx]*SubHistory
}

// NewHistory - empty history for a script
func NewHistory(scrAddr ScrAddr) *History {
	return &History{
		ScrAddr:            scrAddr,
		AlreadyScannedUpTo: ScannedUpToUnknown,
		Shards:             make(map[schema.Hgtx]*SubHistory),
	}
}

// Shard - fetch or create the shard for one hgtx
func (ssh *History) Shard(hgtx schema.Hgtx, create bool) *SubHistory {
	if nil == ssh.Shards {
		if !create {
			return nil
		}
		ssh.Shards = make(map[schema.Hgtx]*SubHistory)
	}
	sub, ok := ssh.Shards[hgtx]
	if !ok {
		if !create {
			return nil
		}
		sub = &SubHistory{ScrAddr: ssh.ScrAddr, Hgtx: hgtx}
		ssh.Shards[hgtx] = sub
	}
	return sub
}

// MergeShard - adopt a shard read from the database
//
// an existing in-memory shard is replaced when force is set,
// otherwise kept
func (ssh *History) MergeShard(sub *SubHistory, force bool) error {
	if sub.ScrAddr != ssh.ScrAddr {
		return fault.ErrOutOfPlaceSubHistory
	}
	if nil == ssh.Shards {
		ssh.Shards = make(map[schema.Hgtx]*SubHistory)
	}
	if _, exists := ssh.Shards[sub.Hgtx]; exists && !force {
		return nil
	}
	ssh.Shards[sub.Hgtx] = sub
	return nil
}

// OrderedShards - shards sorted by height
func (ssh *History) OrderedShards() []*SubHistory {
	shards := make([]*SubHistory, 0, len(ssh.Shards))
	for _, sub := range ssh.Shards {
		shards = append(shards, sub)
	}
	sort.Slice(shards, func(i, j int) bool {
		return string(shards[i].Hgtx[:]) < string(shards[j].Hgtx[:])
	})
	return shards
}

// Recount - recompute summary figures from the loaded shards
//
// spent entries cancel their received counterpart for the unspent
// total; every txio counts towards the txio count
func (ssh *History) Recount() {
	count := uint64(0)
	unspent := uint64(0)
	for _, sub := range ssh.Shards {
		for _, t := range sub.Txios {
			count += 1
			switch t.Kind {
			case TxioReceived, TxioFromSelf:
				unspent += t.Value
			case TxioSpent:
				unspent -= t.Value
			}
		}
	}
	ssh.TotalTxioCount = count
	ssh.TotalUnspent = unspent
	ssh.UseMultipleEntries = len(ssh.Shards) > 1
}

// Serialise - pack the summary record (shards travel separately)
//
// layout: flags(1) ‖ scannedUpTo(4 LE) ‖ varint txioCount ‖
// unspent(8 LE)
func (ssh *History) Serialise() []byte {
	w := codec.NewWriterSize(1 + 4 + 9 + 8)
	flags := uint8(0)
	if ssh.UseMultipleEntries {
		flags |= flagMultipleEntries
	}
	w.PutUint8(flags)
	w.PutUint32(ssh.AlreadyScannedUpTo, binary.LittleEndian)
	w.PutVarInt(ssh.TotalTxioCount)
	w.PutUint64(ssh.TotalUnspent, binary.LittleEndian)
	return w.Bytes()
}

// Parse - unpack a summary record
func (ssh *History) Parse(data []byte) error {
	r := codec.NewReader(data)

	flags, err := r.GetUint8()
	if nil != err {
		return fault.ErrTruncatedInput
	}
	ssh.UseMultipleEntries = 0 != flags&flagMultipleEntries

	ssh.AlreadyScannedUpTo, err = r.GetUint32(binary.LittleEndian)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	ssh.TotalTxioCount, err = r.GetVarInt()
	if nil != err {
		return err
	}
	ssh.TotalUnspent, err = r.GetUint64(binary.LittleEndian)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	if 0 != r.Remaining() {
		return fault.ErrInvalidStructure
	}
	return nil
}
