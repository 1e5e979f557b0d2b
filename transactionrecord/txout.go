// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// Spentness - whether an output has been consumed
type Spentness uint8

// spentness states
const (
	SpentnessUnknown Spentness = iota // not tracked (supernode prune)
	SpentnessUnspent
	SpentnessSpent
)

// txout flag bits
const (
	spentnessMask   = 0x03
	flagCoinbase    = 0x04
	flagParentHash  = 0x08
)

// StoredTxOut - one transaction output slot
type StoredTxOut struct {
	Key        schema.OutKey
	Value      uint64
	Script     []byte
	Spentness  Spentness
	SpentBy    schema.OutKey // input slot that consumed it, when spent
	IsCoinbase bool

	// parent tx hash, carried when known so scans need not re-read
	// the owning transaction record
	HasParent  bool
	ParentHash chainhash.Hash
}

// Serialise - pack the output record
//
// layout: flags(1) ‖ value(8 LE) ‖ script(varbytes) ‖
// [spentBy(8 key fragment)] ‖ [parentHash(32)]
func (stxo *StoredTxOut) Serialise() []byte {
	w := codec.NewWriterSize(1 + 8 + 9 + len(stxo.Script) + 8 + 32)
	flags := uint8(stxo.Spentness) & spentnessMask
	if stxo.IsCoinbase {
		flags |= flagCoinbase
	}
	if stxo.HasParent {
		flags |= flagParentHash
	}
	w.PutUint8(flags)
	w.PutUint64(stxo.Value, binary.LittleEndian)
	w.PutVarBytes(stxo.Script)
	if SpentnessSpent == stxo.Spentness {
		w.PutBytes(stxo.SpentBy[:])
	}
	if stxo.HasParent {
		w.PutBytes(stxo.ParentHash[:])
	}
	return w.Bytes()
}

// Parse - unpack an output record
func (stxo *StoredTxOut) Parse(data []byte) error {
	r := codec.NewReader(data)

	flags, err := r.GetUint8()
	if nil != err {
		return fault.ErrTruncatedInput
	}
	spentness := Spentness(flags & spentnessMask)
	if spentness > SpentnessSpent {
		return fault.ErrInvalidStructure
	}
	stxo.Spentness = spentness
	stxo.IsCoinbase = 0 != flags&flagCoinbase
	stxo.HasParent = 0 != flags&flagParentHash

	stxo.Value, err = r.GetUint64(binary.LittleEndian)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	stxo.Script, err = r.GetVarBytes()
	if nil != err {
		return err
	}

	stxo.SpentBy = schema.OutKey{}
	if SpentnessSpent == stxo.Spentness {
		spentBy, err := r.GetBytesRef(schema.OutKeyLength)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		copy(stxo.SpentBy[:], spentBy)
	}

	stxo.ParentHash = chainhash.Hash{}
	if stxo.HasParent {
		parent, err := r.GetBytesRef(chainhash.HashSize)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		copy(stxo.ParentHash[:], parent)
	}

	if 0 != r.Remaining() {
		return fault.ErrInvalidStructure
	}
	return nil
}
