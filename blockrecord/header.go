// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// HeaderLength - a raw Bitcoin header is always 80 bytes
const HeaderLength = 80

// header flag bits
const (
	flagBlockApplied = 0x01
)

// StoredHeader - a block header with its database coordinates
//
// the transaction map is only populated when the header was read with
// its block payload
type StoredHeader struct {
	Hash      chainhash.Hash
	RawHeader [HeaderLength]byte
	Height    uint32
	DupID     uint8
	NumTx     uint32
	NumBytes  uint32
	Applied   bool

	Txs map[uint16]*transactionrecord.StoredTx
}

// NewStoredHeader - build a stored header from a decoded wire header
func NewStoredHeader(header *wire.BlockHeader, height uint32) (*StoredHeader, error) {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLength))
	err := header.Serialize(buf)
	if nil != err {
		return nil, fault.ErrInvalidStructure
	}
	sbh := &StoredHeader{
		Hash:   header.BlockHash(),
		Height: height,
	}
	copy(sbh.RawHeader[:], buf.Bytes())
	return sbh, nil
}

// Header - decode the raw header bytes
func (sbh *StoredHeader) Header() (*wire.BlockHeader, error) {
	header := &wire.BlockHeader{}
	err := header.Deserialize(bytes.NewReader(sbh.RawHeader[:]))
	if nil != err {
		return nil, fault.ErrInvalidStructure
	}
	return header, nil
}

// PreviousHash - parent hash from the raw header
func (sbh *StoredHeader) PreviousHash() chainhash.Hash {
	var prev chainhash.Hash
	copy(prev[:], sbh.RawHeader[4:4+chainhash.HashSize])
	return prev
}

// Hgtx - the packed database coordinate of this header
func (sbh *StoredHeader) Hgtx() schema.Hgtx {
	return schema.HeightAndDupToHgtx(sbh.Height, sbh.DupID)
}

// Serialise - pack the bare header record
//
// layout: rawHeader(80) ‖ hgtx(4 key fragment) ‖ numTx(4 LE) ‖
// numBytes(4 LE) ‖ flags(1)
func (sbh *StoredHeader) Serialise() []byte {
	w := codec.NewWriterSize(HeaderLength + schema.HgtxLength + 9)
	w.PutBytes(sbh.RawHeader[:])
	hgtx := sbh.Hgtx()
	w.PutBytes(hgtx[:])
	w.PutUint32(sbh.NumTx, binary.LittleEndian)
	w.PutUint32(sbh.NumBytes, binary.LittleEndian)
	flags := uint8(0)
	if sbh.Applied {
		flags |= flagBlockApplied
	}
	w.PutUint8(flags)
	return w.Bytes()
}

// Parse - unpack a bare header record
func (sbh *StoredHeader) Parse(data []byte) error {
	r := codec.NewReader(data)

	raw, err := r.GetBytesRef(HeaderLength)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	copy(sbh.RawHeader[:], raw)

	hgtxBytes, err := r.GetBytesRef(schema.HgtxLength)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	hgtx, _ := schema.HgtxFromBytes(hgtxBytes)
	sbh.Height = hgtx.Height()
	sbh.DupID = hgtx.DupID()

	sbh.NumTx, err = r.GetUint32(binary.LittleEndian)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	sbh.NumBytes, err = r.GetUint32(binary.LittleEndian)
	if nil != err {
		return fault.ErrTruncatedInput
	}
	flags, err := r.GetUint8()
	if nil != err {
		return fault.ErrTruncatedInput
	}
	sbh.Applied = 0 != flags&flagBlockApplied

	sbh.Hash = chainhash.DoubleHashH(sbh.RawHeader[:])
	return nil
}
