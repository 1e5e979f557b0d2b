// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockfile_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/logger"

	"github.com/blockvault/blockvaultd/blockfile"
	"github.com/blockvault/blockvaultd/fault"
)

var testMagic = [4]byte{0xfa, 0xbf, 0xb5, 0xda}

func TestMain(m *testing.M) {
	logDir, err := os.MkdirTemp("", "blockfile-test-log")
	if nil != err {
		panic(err)
	}
	defer os.RemoveAll(logDir)

	logConfig := logger.Configuration{
		Directory: logDir,
		File:      "test.log",
		Size:      50000,
		Count:     10,
		Levels: map[string]string{
			logger.DefaultTag: "error",
		},
	}
	if err := logger.Initialise(logConfig); nil != err {
		panic(fmt.Sprintf("logger initialisation failed: %s", err))
	}
	defer logger.Finalise()

	os.Exit(m.Run())
}

func writeBlockFile(t *testing.T, dir string, name string, blocks ...[]byte) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	for _, raw := range blocks {
		require.NoError(t, blockfile.WriteBlock(f, testMagic, raw))
	}
}

func TestReaderWalksFilesInOrder(t *testing.T) {
	dir := t.TempDir()

	blockA := bytes.Repeat([]byte{0xaa}, 100)
	blockB := bytes.Repeat([]byte{0xbb}, 200)
	blockC := bytes.Repeat([]byte{0xcc}, 50)

	writeBlockFile(t, dir, "blk00000.dat", blockA, blockB)
	writeBlockFile(t, dir, "blk00001.dat", blockC)

	// non-block files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "peers.dat"), []byte{1}, 0o644))

	r, err := blockfile.NewReader(dir, testMagic)
	require.NoError(t, err)
	defer r.Close()

	for _, want := range [][]byte{blockA, blockB, blockC} {
		raw, err := r.NextBlock()
		require.NoError(t, err)
		assert.Equal(t, want, raw)
	}

	_, err = r.NextBlock()
	assert.Equal(t, io.EOF, err)

	// reset rewinds the stream
	r.Reset()
	raw, err := r.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, blockA, raw)
}

func TestReaderZeroPadding(t *testing.T) {
	dir := t.TempDir()

	blockA := bytes.Repeat([]byte{0xaa}, 10)
	writeBlockFile(t, dir, "blk00000.dat", blockA)

	// preallocated tail of zeros after the last record
	f, err := os.OpenFile(filepath.Join(dir, "blk00000.dat"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 64))
	require.NoError(t, err)
	f.Close()

	r, err := blockfile.NewReader(dir, testMagic)
	require.NoError(t, err)
	defer r.Close()

	raw, err := r.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, blockA, raw)

	_, err = r.NextBlock()
	assert.Equal(t, io.EOF, err)
}

func TestReaderBadMagic(t *testing.T) {
	dir := t.TempDir()

	f, err := os.Create(filepath.Join(dir, "blk00000.dat"))
	require.NoError(t, err)
	require.NoError(t, blockfile.WriteBlock(f, [4]byte{1, 2, 3, 4}, []byte{0xaa}))
	f.Close()

	r, err := blockfile.NewReader(dir, testMagic)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.NextBlock()
	assert.Equal(t, fault.ErrWrongNetworkMagic, err)
}

func TestRescanPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()

	blockA := []byte{0xaa, 0xaa}
	writeBlockFile(t, dir, "blk00000.dat", blockA)

	r, err := blockfile.NewReader(dir, testMagic)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.NextBlock()
	require.NoError(t, err)
	_, err = r.NextBlock()
	assert.Equal(t, io.EOF, err)

	blockB := []byte{0xbb, 0xbb, 0xbb}
	writeBlockFile(t, dir, "blk00001.dat", blockB)
	require.NoError(t, r.Rescan())

	raw, err := r.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, blockB, raw)
}
