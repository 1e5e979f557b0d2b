// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockfile - sequential access to raw block files
//
// Block files hold magic-framed records: magic(4) ‖ length(4 LE) ‖
// raw block bytes.  Files are walked in name order, records in file
// order.  A directory watcher pokes the indexer when new data lands.
package blockfile

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bitmark-inc/logger"

	"github.com/blockvault/blockvaultd/fault"
)

// framing constants
const (
	frameHeaderLength = 8 // magic(4) + length(4 LE)

	// a record longer than this is treated as corruption
	maxBlockLength = 4 * 1000 * 1000
)

// Reader - sequential reader over a directory of block files
type Reader struct {
	log   *logger.L
	dir   string
	magic [4]byte

	files   []string
	fileIdx int
	current *os.File
	offset  int64
}

// NewReader - open a block file directory
func NewReader(dir string, magic [4]byte) (*Reader, error) {
	r := &Reader{
		log:   logger.New("blockfile"),
		dir:   dir,
		magic: magic,
	}
	err := r.Rescan()
	if nil != err {
		return nil, err
	}
	return r, nil
}

// Rescan - refresh the file list, keeping the read position
func (r *Reader) Rescan() error {
	entries, err := os.ReadDir(r.dir)
	if nil != err {
		return err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "blk") || !strings.HasSuffix(name, ".dat") {
			continue
		}
		files = append(files, filepath.Join(r.dir, name))
	}
	sort.Strings(files)
	r.files = files
	return nil
}

// Reset - rewind to the first record of the first file
func (r *Reader) Reset() {
	r.closeCurrent()
	r.fileIdx = 0
	r.offset = 0
}

// Close - release the open file
func (r *Reader) Close() {
	r.closeCurrent()
}

func (r *Reader) closeCurrent() {
	if nil != r.current {
		r.current.Close()
		r.current = nil
	}
}

// NextBlock - the next raw block in the stream
//
// io.EOF signals a clean end of the stream; anything malformed is a
// corruption fault
func (r *Reader) NextBlock() ([]byte, error) {
	for {
		if nil == r.current {
			if r.fileIdx >= len(r.files) {
				return nil, io.EOF
			}
			f, err := os.Open(r.files[r.fileIdx])
			if nil != err {
				return nil, err
			}
			r.current = f
			r.offset = 0
		}

		raw, err := r.readFrame()
		if io.EOF == err {
			if r.fileIdx >= len(r.files)-1 {
				// the newest file may still be appended to:
				// hold position and report a clean end
				_, seekErr := r.current.Seek(r.offset, io.SeekStart)
				if nil != seekErr {
					return nil, seekErr
				}
				return nil, io.EOF
			}
			r.closeCurrent()
			r.fileIdx += 1
			continue
		}
		if nil != err {
			return nil, err
		}
		return raw, nil
	}
}

func (r *Reader) readFrame() ([]byte, error) {
	var frame [frameHeaderLength]byte
	n, err := io.ReadFull(r.current, frame[:])
	if io.EOF == err || (io.ErrUnexpectedEOF == err && isZero(frame[:n])) {
		// preallocated block files end in zero padding
		return nil, io.EOF
	}
	if nil != err {
		return nil, fault.ErrTruncatedInput
	}
	if isZero(frame[:]) {
		return nil, io.EOF
	}

	if frame[0] != r.magic[0] || frame[1] != r.magic[1] ||
		frame[2] != r.magic[2] || frame[3] != r.magic[3] {
		r.log.Errorf("bad magic at %q offset %d", r.files[r.fileIdx], r.offset)
		return nil, fault.ErrWrongNetworkMagic
	}

	length := binary.LittleEndian.Uint32(frame[4:])
	if 0 == length || length > maxBlockLength {
		return nil, fault.ErrInvalidStructure
	}

	raw := make([]byte, length)
	_, err = io.ReadFull(r.current, raw)
	if nil != err {
		return nil, fault.ErrTruncatedInput
	}
	r.offset += int64(frameHeaderLength) + int64(length)
	return raw, nil
}

func isZero(b []byte) bool {
	for _, x := range b {
		if 0 != x {
			return false
		}
	}
	return true
}

// WriteBlock - append one framed block to a file
//
// used by tests and by tools that build block files
func WriteBlock(f *os.File, magic [4]byte, raw []byte) error {
	var frame [frameHeaderLength]byte
	copy(frame[:4], magic[:])
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(raw)))
	_, err := f.Write(frame[:])
	if nil != err {
		return err
	}
	_, err = f.Write(raw)
	return err
}
