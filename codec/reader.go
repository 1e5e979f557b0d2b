// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"

	"github.com/blockvault/blockvaultd/fault"
)

// Reader - positioned reader over a byte slice
//
// the underlying slice is not copied; GetBytesRef results alias it
type Reader struct {
	data []byte
	pos  int
}

// NewReader - wrap a byte slice for reading
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining - count of unread bytes
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Position - current read offset
func (r *Reader) Position() int {
	return r.pos
}

// ResetPosition - rewind to the start of the slice
func (r *Reader) ResetPosition() {
	r.pos = 0
}

// Advance - skip n bytes
func (r *Reader) Advance(n int) error {
	if n < 0 || r.Remaining() < n {
		return fault.ErrTruncatedInput
	}
	r.pos += n
	return nil
}

// GetUint8 - read one byte
func (r *Reader) GetUint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, fault.ErrTruncatedInput
	}
	b := r.data[r.pos]
	r.pos += 1
	return b, nil
}

// GetUint16 - read two bytes in the given order
func (r *Reader) GetUint16(order binary.ByteOrder) (uint16, error) {
	if r.Remaining() < 2 {
		return 0, fault.ErrTruncatedInput
	}
	v := order.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// GetUint32 - read four bytes in the given order
func (r *Reader) GetUint32(order binary.ByteOrder) (uint32, error) {
	if r.Remaining() < 4 {
		return 0, fault.ErrTruncatedInput
	}
	v := order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// GetUint64 - read eight bytes in the given order
func (r *Reader) GetUint64(order binary.ByteOrder) (uint64, error) {
	if r.Remaining() < 8 {
		return 0, fault.ErrTruncatedInput
	}
	v := order.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// GetBytes - read n bytes as a fresh copy
func (r *Reader) GetBytes(n int) ([]byte, error) {
	ref, err := r.GetBytesRef(n)
	if nil != err {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, ref)
	return out, nil
}

// GetBytesRef - read n bytes as a view into the underlying slice
//
// only valid while the underlying slice is
func (r *Reader) GetBytesRef(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fault.ErrTruncatedInput
	}
	ref := r.data[r.pos : r.pos+n]
	r.pos += n
	return ref, nil
}

// GetVarInt - read a Bitcoin compact-size integer
func (r *Reader) GetVarInt() (uint64, error) {
	first, err := r.GetUint8()
	if nil != err {
		return 0, err
	}
	switch first {
	case 0xfd:
		v, err := r.GetUint16(binary.LittleEndian)
		if nil != err {
			return 0, err
		}
		if v < 0xfd {
			return 0, fault.ErrVarIntOverflow
		}
		return uint64(v), nil
	case 0xfe:
		v, err := r.GetUint32(binary.LittleEndian)
		if nil != err {
			return 0, err
		}
		if v <= 0xffff {
			return 0, fault.ErrVarIntOverflow
		}
		return uint64(v), nil
	case 0xff:
		v, err := r.GetUint64(binary.LittleEndian)
		if nil != err {
			return 0, err
		}
		if v <= 0xffffffff {
			return 0, fault.ErrVarIntOverflow
		}
		return v, nil
	default:
		return uint64(first), nil
	}
}

// GetVarBytes - read a compact-size length followed by that many bytes
func (r *Reader) GetVarBytes() ([]byte, error) {
	n, err := r.GetVarInt()
	if nil != err {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, fault.ErrTruncatedInput
	}
	return r.GetBytes(int(n))
}
