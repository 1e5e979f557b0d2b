// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"

	"github.com/syndtr/goleveldb/leveldb/iterator"

	"github.com/blockvault/blockvaultd/codec"
	"github.com/blockvault/blockvaultd/schema"
)

// Iter - stateful wrapper over a store cursor
//
// an iterator snapshots the committed state for its whole lifetime;
// writes made through the database after creation are not visible
// until a new iterator is obtained.  the current key and value are
// materialised lazily on first read after a move
type Iter struct {
	it    iterator.Iterator
	valid bool
	dirty bool

	key         []byte
	value       []byte
	keyReader   *codec.Reader
	valueReader *codec.Reader
}

// NewIterator - iterator over one logical sub-database
//
// callers must Release it when done
func (db *BlockDatabase) NewIterator(sel schema.Database) *Iter {
	db.RLock()
	defer db.RUnlock()
	return &Iter{
		it:    db.env(sel).NewIterator(nil, nil),
		dirty: true,
	}
}

// Release - drop the underlying cursor
func (iter *Iter) Release() {
	iter.it.Release()
	iter.valid = false
	iter.dirty = true
}

// Valid - cursor is on an entry
func (iter *Iter) Valid() bool {
	return iter.valid
}

// ValidForPrefix - cursor is on an entry of one key family
func (iter *Iter) ValidForPrefix(prefix schema.Prefix) bool {
	if !iter.valid {
		return false
	}
	key := iter.rawKey()
	return 0 != len(key) && schema.Prefix(key[0]) == prefix
}

// mark the cursor moved: cached key/value no longer describe it
func (iter *Iter) moved(valid bool) bool {
	iter.valid = valid
	iter.dirty = true
	iter.key = nil
	iter.value = nil
	iter.keyReader = nil
	iter.valueReader = nil
	return valid
}

// rawKey - current key without materialising a copy
func (iter *Iter) rawKey() []byte {
	if nil != iter.key {
		return iter.key
	}
	return iter.it.Key()
}

// readIterData - materialise owned copies of key and value
func (iter *Iter) readIterData() bool {
	if !iter.valid {
		return false
	}
	if !iter.dirty {
		return true
	}
	iter.key = append([]byte(nil), iter.it.Key()...)
	iter.value = append([]byte(nil), iter.it.Value()...)
	iter.keyReader = codec.NewReader(iter.key)
	iter.valueReader = codec.NewReader(iter.value)
	iter.dirty = false
	return true
}

// Key - owned copy of the current key
func (iter *Iter) Key() []byte {
	if !iter.readIterData() {
		return nil
	}
	return iter.key
}

// Value - owned copy of the current value
func (iter *Iter) Value() []byte {
	if !iter.readIterData() {
		return nil
	}
	return iter.value
}

// KeyReader - positioned reader over the current key
//
// every call rewinds to the start
func (iter *Iter) KeyReader() *codec.Reader {
	if !iter.readIterData() {
		return nil
	}
	iter.keyReader.ResetPosition()
	return iter.keyReader
}

// ValueReader - positioned reader over the current value
//
// every call rewinds to the start
func (iter *Iter) ValueReader() *codec.Reader {
	if !iter.readIterData() {
		return nil
	}
	iter.valueReader.ResetPosition()
	return iter.valueReader
}

// ResetReaders - rewind both readers without touching the cursor
//
// callable arbitrarily often
func (iter *Iter) ResetReaders() {
	if nil != iter.keyReader {
		iter.keyReader.ResetPosition()
	}
	if nil != iter.valueReader {
		iter.valueReader.ResetPosition()
	}
}

// SeekTo - smallest entry with key ≥ the argument
func (iter *Iter) SeekTo(key []byte) bool {
	return iter.moved(iter.it.Seek(key))
}

// SeekToExact - position and require an exact key match
func (iter *Iter) SeekToExact(key []byte) bool {
	if !iter.SeekTo(key) {
		return false
	}
	return bytes.Equal(iter.rawKey(), key)
}

// SeekToStartsWith - position and require a prefix match
func (iter *Iter) SeekToStartsWith(prefix []byte) bool {
	if !iter.SeekTo(prefix) {
		return false
	}
	return bytes.HasPrefix(iter.rawKey(), prefix)
}

// SeekToPrefix - position at the start of one key family
func (iter *Iter) SeekToPrefix(prefix schema.Prefix, tail []byte) bool {
	return iter.SeekToStartsWith(prefix.Key(tail))
}

// SeekToBefore - largest entry with key ≤ the argument
func (iter *Iter) SeekToBefore(key []byte) bool {
	if iter.it.Seek(key) {
		if bytes.Equal(iter.it.Key(), key) {
			return iter.moved(true)
		}
		return iter.moved(iter.it.Prev())
	}
	// ran off the end: the last entry, if any, is before key
	return iter.moved(iter.it.Last())
}

// SeekToFirst - position at the very first entry
func (iter *Iter) SeekToFirst() bool {
	return iter.moved(iter.it.First())
}

// Advance - step forward
func (iter *Iter) Advance() bool {
	if !iter.valid {
		return false
	}
	return iter.moved(iter.it.Next())
}

// AdvanceWithinPrefix - step forward, invalid once the key family ends
func (iter *Iter) AdvanceWithinPrefix(prefix schema.Prefix) bool {
	if !iter.Advance() {
		return false
	}
	if !iter.ValidForPrefix(prefix) {
		iter.moved(false)
		return false
	}
	return true
}

// Retreat - step backward
func (iter *Iter) Retreat() bool {
	if !iter.valid {
		return false
	}
	return iter.moved(iter.it.Prev())
}

// CheckKeyExact - non-moving exact key predicate
func (iter *Iter) CheckKeyExact(key []byte) bool {
	return iter.valid && bytes.Equal(iter.rawKey(), key)
}

// CheckKeyStartsWith - non-moving prefix predicate
func (iter *Iter) CheckKeyStartsWith(prefix []byte) bool {
	return iter.valid && bytes.HasPrefix(iter.rawKey(), prefix)
}
