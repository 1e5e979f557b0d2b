// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
)

// Writer - append-only binary record builder
type Writer struct {
	buf []byte
}

// NewWriter - create an empty writer
func NewWriter() *Writer {
	return &Writer{}
}

// NewWriterSize - create a writer with a capacity hint
func NewWriterSize(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// Bytes - the accumulated record
//
// the slice is owned by the writer until the writer is discarded
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Length - number of bytes written so far
func (w *Writer) Length() int {
	return len(w.buf)
}

// PutUint8 - append one byte
func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutUint16 - append two bytes in the given order
func (w *Writer) PutUint16(v uint16, order binary.ByteOrder) {
	var tmp [2]byte
	order.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint32 - append four bytes in the given order
func (w *Writer) PutUint32(v uint32, order binary.ByteOrder) {
	var tmp [4]byte
	order.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint64 - append eight bytes in the given order
func (w *Writer) PutUint64(v uint64, order binary.ByteOrder) {
	var tmp [8]byte
	order.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutBytes - append raw bytes
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutVarInt - append a Bitcoin compact-size integer
func (w *Writer) PutVarInt(v uint64) {
	switch {
	case v < 0xfd:
		w.PutUint8(uint8(v))
	case v <= 0xffff:
		w.PutUint8(0xfd)
		w.PutUint16(uint16(v), binary.LittleEndian)
	case v <= 0xffffffff:
		w.PutUint8(0xfe)
		w.PutUint32(uint32(v), binary.LittleEndian)
	default:
		w.PutUint8(0xff)
		w.PutUint64(v, binary.LittleEndian)
	}
}

// PutVarBytes - append a compact-size length followed by the bytes
func (w *Writer) PutVarBytes(b []byte) {
	w.PutVarInt(uint64(len(b)))
	w.PutBytes(b)
}
