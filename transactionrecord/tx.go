// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// tx flag bits
const (
	flagFragmented = 0x01
)

// StoredTx - one transaction slot
//
// fragmented ⇔ the payload omits the outputs; they are stored under
// their own 8-byte keys instead
type StoredTx struct {
	Hash       chainhash.Hash
	Key        schema.TxKey
	Fragmented bool
	NumTxOut   uint16

	// full serialisation, only when not fragmented
	RawTx []byte

	// fragment fields, only when fragmented
	Version  uint32
	LockTime uint32
	TxInRaw  [][]byte

	// populated on reads that materialise outputs
	Outs map[uint16]*StoredTxOut
}

// NewStoredTx - build a stored transaction from a decoded wire tx
//
// fragmented selects whether the outputs stay inline
func NewStoredTx(tx *wire.MsgTx, key schema.TxKey, fragmented bool) (*StoredTx, error) {
	if len(tx.TxOut) > int(^uint16(0)) {
		return nil, fault.ErrInvalidStructure
	}
	stx := &StoredTx{
		Hash:       tx.TxHash(),
		Key:        key,
		Fragmented: fragmented,
		NumTxOut:   uint16(len(tx.TxOut)),
	}

	if fragmented {
		stx.Version = uint32(tx.Version)
		stx.LockTime = tx.LockTime
		stx.TxInRaw = make([][]byte, len(tx.TxIn))
		for i, txIn := range tx.TxIn {
			stx.TxInRaw[i] = serialiseTxIn(txIn)
		}
		return stx, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	err := tx.Serialize(buf)
	if nil != err {
		return nil, fault.ErrInvalidStructure
	}
	stx.RawTx = buf.Bytes()
	return stx, nil
}

// Tx - decode the complete transaction
//
// a fragmented record needs its outputs present in Outs
func (stx *StoredTx) Tx() (*wire.MsgTx, error) {
	if !stx.Fragmented {
		tx := &wire.MsgTx{}
		err := tx.Deserialize(bytes.NewReader(stx.RawTx))
		if nil != err {
			return nil, fault.ErrInvalidStructure
		}
		return tx, nil
	}

	tx := &wire.MsgTx{
		Version:  int32(stx.Version),
		LockTime: stx.LockTime,
	}
	for _, raw := range stx.TxInRaw {
		txIn, err := parseTxIn(raw)
		if nil != err {
			return nil, err
		}
		tx.TxIn = append(tx.TxIn, txIn)
	}
	for i := uint16(0); i < stx.NumTxOut; i += 1 {
		stxo, ok := stx.Outs[i]
		if !ok {
			return nil, fault.ErrTxOutNotFound
		}
		tx.TxOut = append(tx.TxOut, &wire.TxOut{
			Value:    int64(stxo.Value),
			PkScript: stxo.Script,
		})
	}
	return tx, nil
}

// serialiseTxIn - the on-wire form of one input
func serialiseTxIn(txIn *wire.TxIn) []byte {
	w := codec.NewWriterSize(36 + 9 + len(txIn.SignatureScript) + 4)
	w.PutBytes(txIn.PreviousOutPoint.Hash[:])
	w.PutUint32(txIn.PreviousOutPoint.Index, binary.LittleEndian)
	w.PutVarBytes(txIn.SignatureScript)
	w.PutUint32(txIn.Sequence, binary.LittleEndian)
	return w.Bytes()
}

// parseTxIn - decode one serialised input
func parseTxIn(raw []byte) (*wire.TxIn, error) {
	r := codec.NewReader(raw)
	txIn := &wire.TxIn{}

	hash, err := r.GetBytesRef(chainhash.HashSize)
	if nil != err {
		return nil, fault.ErrTruncatedInput
	}
	copy(txIn.PreviousOutPoint.Hash[:], hash)

	txIn.PreviousOutPoint.Index, err = r.GetUint32(binary.LittleEndian)
	if nil != err {
		return nil, fault.ErrTruncatedInput
	}
	txIn.SignatureScript, err = r.GetVarBytes()
	if nil != err {
		return nil, err
	}
	txIn.Sequence, err = r.GetUint32(binary.LittleEndian)
	if nil != err {
		return nil, fault.ErrTruncatedInput
	}
	return txIn, nil
}

// Serialise - pack the transaction record
//
// layout: flags(1) ‖ hash(32) ‖ numTxOut(2 LE) ‖ payload
// payload, inline:     rawTx(varbytes)
// payload, fragmented: version(4 LE) ‖ lockTime(4 LE) ‖
//
//	varint inCount ‖ per input varbytes
func (stx *StoredTx) Serialise() []byte {
	w := codec.NewWriter()
	flags := uint8(0)
	if stx.Fragmented {
		flags |= flagFragmented
	}
	w.PutUint8(flags)
	w.PutBytes(stx.Hash[:])
	w.PutUint16(stx.NumTxOut, binary.LittleEndian)

	if stx.Fragmented {
		w.PutUint32(stx.Version, binary.LittleEndian)
		w.PutUint32(stx.LockTime, binary.LittleEndian)
		w.PutVarInt(uint64(len(stx.TxInRaw)))
		for _, raw := range stx.TxInRaw {
			w.PutVarBytes(raw)
		}
	} else {
		w.PutVarBytes(stx.RawTx)
	}
	return w.Bytes()
}

// Parse - unpack a transaction record
func (stx *StoredTx) Parse(data []byte) error {
	r := codec.NewReader(data)

	flags, err := r.GetUint8()
	if nil != err {
		return fault.ErrTruncatedInput
	}
	stx.Fragmented = 0 != flags&flagFragmented

	hash, err := r.GetBytesRef(chainhash.HashSize)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	copy(stx.Hash[:], hash)

	stx.NumTxOut, err = r.GetUint16(binary.LittleEndian)
	if nil != err {
		return fault.ErrTruncatedInput
	}

	stx.RawTx = nil
	stx.TxInRaw = nil

	if stx.Fragmented {
		stx.Version, err = r.GetUint32(binary.LittleEndian)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		stx.LockTime, err = r.GetUint32(binary.LittleEndian)
		if nil != err {
			return fault.ErrTruncatedInput
		}
		inCount, err := r.GetVarInt()
		if nil != err {
			return err
		}
		stx.TxInRaw = make([][]byte, 0, inCount)
		for i := uint64(0); i < inCount; i += 1 {
			raw, err := r.GetVarBytes()
			if nil != err {
				return err
			}
			stx.TxInRaw = append(stx.TxInRaw, raw)
		}
	} else {
		stx.RawTx, err = r.GetVarBytes()
		if nil != err {
			return err
		}
	}

	if 0 != r.Remaining() {
		return fault.ErrInvalidStructure
	}
	return nil
}
