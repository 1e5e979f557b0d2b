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

// TxioKind - how a txio touched the script
type TxioKind uint8

// txio kinds
const (
	TxioReceived TxioKind = iota
	TxioSpent
	TxioMultisig
	TxioFromSelf
)

// Txio - one movement of value at this script
type Txio struct {
	Key   schema.OutKey
	Kind  TxioKind
	Value uint64
}

// SubHistory - the txio set of one script at one (height, dup id)
type SubHistory struct {
	ScrAddr ScrAddr
	Hgtx    schema.Hgtx
	Txios   []Txio
}

// Insert - add or replace a txio, kept sorted by key
func (sub *SubHistory) Insert(txio Txio) {
	i := sort.Search(len(sub.Txios), func(i int) bool {
		return string(sub.Txios[i].Key[:]) >= string(txio.Key[:])
	})
	if i < len(sub.Txios) && sub.Txios[i].Key == txio.Key {
		sub.Txios[i] = txio
		return
	}
	sub.Txios = append(sub.Txios, Txio{})
	copy(sub.Txios[i+1:], sub.Txios[i:])
	sub.Txios[i] = txio
}

// Remove - drop the txio for a key
func (sub *SubHistory) Remove(key schema.OutKey) bool {
	for i, t := range sub.Txios {
		if t.Key == key {
			sub.Txios = append(sub.Txios[:i], sub.Txios[i+1:]...)
			return true
		}
	}
	return false
}

// ReceivedValue - sum of funds received in this shard
func (sub *SubHistory) ReceivedValue() uint64 {
	total := uint64(0)
	for _, t := range sub.Txios {
		if TxioReceived == t.Kind || TxioFromSelf == t.Kind {
			total += t.Value
		}
	}
	return total
}

// Serialise - pack the shard
//
// layout: varint count then per txio kind(1) ‖ key(8 fragment) ‖
// value(8 LE)
func (sub *SubHistory) Serialise() []byte {
	w := codec.NewWriterSize(1 + len(sub.Txios)*(1+schema.OutKeyLength+8))
	w.PutVarInt(uint64(len(sub.Txios)))
	for _, t := range sub.Txios {
		w.PutUint8(uint8(t.Kind))
		w.PutBytes(t.Key[:])
		w.PutUint64(t.Value, binary.LittleEndian)
	}
	return w.Bytes()
}

// Parse - unpack a shard
func (sub *SubHistory) Parse(data []byte) error {
	r := codec.NewReader(data)
	count, err := r.GetVarInt()
	if nil != err {
		return err
	}
	txios := make([]Txio, 0, count)
	for i := uint64(0); i < count; i += 1 {
		kind, err := r.GetUint8()
		if nil != err {
			return fault.ErrTruncatedInput
		}
		if kind > uint8(TxioFromSelf) {
			return fault.ErrInvalidStructure
		}
		keyBytes, err := r.GetBytesRef(schema.OutKeyLength)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		value, err := r.GetUint64(binary.LittleEndian)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		key, _ := schema.OutKeyFromBytes(keyBytes)
		txios = append(txios, Txio{Key: key, Kind: TxioKind(kind), Value: value})
	}
	if 0 != r.Remaining() {
		return fault.ErrInvalidStructure
	}
	sub.Txios = txios
	return nil
}
