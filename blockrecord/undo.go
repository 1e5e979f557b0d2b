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
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// UndoData - everything needed to roll one block back out
//
// SpentOutputs carries the complete pre-spend record of every output
// the block consumed; CreatedOutputs lists the slots the block added
// so they can be deleted again
type UndoData struct {
	Height    uint32
	DupID     uint8
	BlockHash chainhash.Hash

	SpentOutputs   []*transactionrecord.StoredTxOut
	CreatedOutputs []schema.OutKey
}

// Hgtx - the packed coordinate of the block this record undoes
func (sud *UndoData) Hgtx() schema.Hgtx {
	return schema.HeightAndDupToHgtx(sud.Height, sud.DupID)
}

// Serialise - pack the undo record
//
// layout: blockHash(32) ‖ varint spentCount ‖ per spent output
// key(8 fragment) ‖ record(varbytes) ‖ varint createdCount ‖
// key(8 fragment) each
func (sud *UndoData) Serialise() []byte {
	w := codec.NewWriter()
	w.PutBytes(sud.BlockHash[:])

	w.PutVarInt(uint64(len(sud.SpentOutputs)))
	for _, stxo := range sud.SpentOutputs {
		w.PutBytes(stxo.Key[:])
		w.PutVarBytes(stxo.Serialise())
	}

	w.PutVarInt(uint64(len(sud.CreatedOutputs)))
	for _, key := range sud.CreatedOutputs {
		w.PutBytes(key[:])
	}
	return w.Bytes()
}

// Parse - unpack an undo record
func (sud *UndoData) Parse(data []byte) error {
	r := codec.NewReader(data)

	hash, err := r.GetBytesRef(chainhash.HashSize)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	copy(sud.BlockHash[:], hash)

	spentCount, err := r.GetVarInt()
	if nil != err {
		return err
	}
	sud.SpentOutputs = make([]*transactionrecord.StoredTxOut, 0, spentCount)
	for i := uint64(0); i < spentCount; i += 1 {
		keyBytes, err := r.GetBytesRef(schema.OutKeyLength)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		record, err := r.GetVarBytes()
		if nil != err {
			return err
		}
		stxo := &transactionrecord.StoredTxOut{}
		err = stxo.Parse(record)
		if nil != err {
			return err
		}
		stxo.Key, _ = schema.OutKeyFromBytes(keyBytes)
		sud.SpentOutputs = append(sud.SpentOutputs, stxo)
	}

	createdCount, err := r.GetVarInt()
	if nil != err {
		return err
	}
	sud.CreatedOutputs = make([]schema.OutKey, 0, createdCount)
	for i := uint64(0); i < createdCount; i += 1 {
		keyBytes, err := r.GetBytesRef(schema.OutKeyLength)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		key, _ := schema.OutKeyFromBytes(keyBytes)
		sud.CreatedOutputs = append(sud.CreatedOutputs, key)
	}

	if 0 != r.Remaining() {
		return fault.ErrInvalidStructure
	}
	return nil
}
