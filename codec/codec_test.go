// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/fault"
)

func TestReadWriteRoundTrip(t *testing.T) {
	w := codec.NewWriter()
	w.PutUint8(0x7f)
	w.PutUint16(0x0102, binary.BigEndian)
	w.PutUint32(0xdeadbeef, binary.LittleEndian)
	w.PutUint64(0x1122334455667788, binary.LittleEndian)
	w.PutVarBytes([]byte("script bytes"))

	r := codec.NewReader(w.Bytes())

	b, err := r.GetUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7f), b)

	v16, err := r.GetUint16(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)

	v32, err := r.GetUint32(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v32)

	v64, err := r.GetUint64(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v64)

	s, err := r.GetVarBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("script bytes"), s)

	assert.Equal(t, 0, r.Remaining())
}

func TestVarIntBoundaries(t *testing.T) {
	values := []uint64{
		0, 1, 0xfc,
		0xfd, 0xffff,
		0x10000, 0xffffffff,
		0x100000000, 0xffffffffffffffff,
	}
	for _, v := range values {
		w := codec.NewWriter()
		w.PutVarInt(v)
		r := codec.NewReader(w.Bytes())
		got, err := r.GetVarInt()
		require.NoError(t, err, "value: %d", v)
		assert.Equal(t, v, got)
		assert.Equal(t, 0, r.Remaining())
	}
}

func TestVarIntNonCanonical(t *testing.T) {
	// 0xfd prefix carrying a value that fits in one byte
	r := codec.NewReader([]byte{0xfd, 0x10, 0x00})
	_, err := r.GetVarInt()
	assert.Equal(t, fault.ErrVarIntOverflow, err)

	// 0xfe prefix carrying a value that fits in two bytes
	r = codec.NewReader([]byte{0xfe, 0xff, 0xff, 0x00, 0x00})
	_, err = r.GetVarInt()
	assert.Equal(t, fault.ErrVarIntOverflow, err)
}

func TestTruncation(t *testing.T) {
	r := codec.NewReader([]byte{0x01, 0x02})

	_, err := r.GetUint32(binary.LittleEndian)
	assert.Equal(t, fault.ErrTruncatedInput, err)

	// position must be unchanged after a failed read
	v, err := r.GetUint16(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v)

	// var bytes whose length runs past the end
	r = codec.NewReader([]byte{0x05, 0xaa})
	_, err = r.GetVarBytes()
	assert.Equal(t, fault.ErrTruncatedInput, err)
}

func TestResetPosition(t *testing.T) {
	r := codec.NewReader([]byte{1, 2, 3, 4})
	_, err := r.GetUint16(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Position())
	r.ResetPosition()
	assert.Equal(t, 0, r.Position())
	assert.Equal(t, 4, r.Remaining())
}
