// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// Version - the record format version written into every info record
const Version uint32 = 0x00060000

// InvalidHeight - the top height of a database that holds no blocks
const InvalidHeight uint32 = 0xffffffff

// DBInfo - the single info record of a sub-database
//
// the top block pointer is the linearisation point for readers: it is
// always the last thing written by a block ingest batch
type DBInfo struct {
	Magic        [4]byte
	Type         schema.DBType
	Prune        schema.PruneType
	Version      uint32
	TopBlockHgt  uint32
	TopBlockHash chainhash.Hash
}

// NewDBInfo - info record of a freshly created database
func NewDBInfo(magic [4]byte, dbType schema.DBType, prune schema.PruneType) *DBInfo {
	return &DBInfo{
		Magic:       magic,
		Type:        dbType,
		Prune:       prune,
		Version:     Version,
		TopBlockHgt: InvalidHeight,
	}
}

// dbInfoLength - fixed record size
const dbInfoLength = 4 + 1 + 1 + 4 + 4 + chainhash.HashSize

// Serialise - pack the info record
func (info *DBInfo) Serialise() []byte {
	w := codec.NewWriterSize(dbInfoLength)
	w.PutBytes(info.Magic[:])
	w.PutUint8(byte(info.Type))
	w.PutUint8(byte(info.Prune))
	w.PutUint32(info.Version, binary.LittleEndian)
	w.PutUint32(info.TopBlockHgt, binary.LittleEndian)
	w.PutBytes(info.TopBlockHash[:])
	return w.Bytes()
}

// Parse - unpack an info record
func (info *DBInfo) Parse(data []byte) error {
	if len(data) != dbInfoLength {
		return fault.ErrInvalidStructure
	}
	r := codec.NewReader(data)

	magic, _ := r.GetBytesRef(4)
	copy(info.Magic[:], magic)

	dbType, _ := r.GetUint8()
	info.Type = schema.DBType(dbType)

	prune, _ := r.GetUint8()
	info.Prune = schema.PruneType(prune)

	info.Version, _ = r.GetUint32(binary.LittleEndian)
	info.TopBlockHgt, _ = r.GetUint32(binary.LittleEndian)

	hash, _ := r.GetBytesRef(chainhash.HashSize)
	copy(info.TopBlockHash[:], hash)

	return nil
}
