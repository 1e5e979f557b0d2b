// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/bitmark-inc/logger"

	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// BeginBatch - open a write batch
//
// batches nest: inner begin/commit pairs are coalesced and only the
// outermost commit writes.  every begin must be matched by exactly
// one commit or abort
func (db *BlockDatabase) BeginBatch() {
	db.Lock()
	defer db.Unlock()
	if !db.isOpen {
		logger.Panic("storage.BeginBatch: database is not open")
	}
	db.batchDepth += 1
}

// CommitBatch - close one nesting level, writing at the outermost
func (db *BlockDatabase) CommitBatch() error {
	db.Lock()
	defer db.Unlock()

	if 0 == db.batchDepth {
		db.log.Critical("commit without begin")
		return fault.ErrUnbalancedBatch
	}
	db.batchDepth -= 1
	if db.batchDepth > 0 {
		return nil
	}

	for i, handle := range db.envs {
		if nil == handle {
			continue
		}
		err := handle.Write(db.batches[i], nil)
		if nil != err {
			db.log.Criticalf("batch write failed: %s", err)
			db.abortLocked()
			return err
		}
		db.batches[i].Reset()
	}
	db.cache.Clear()
	return nil
}

// AbortBatch - discard the whole batch regardless of nesting depth
func (db *BlockDatabase) AbortBatch() {
	db.Lock()
	defer db.Unlock()
	db.abortLocked()
}

func (db *BlockDatabase) abortLocked() {
	for i := range db.batches {
		if nil != db.batches[i] {
			db.batches[i].Reset()
		}
	}
	db.cache.Clear()
	db.batchDepth = 0
}

// InBatch - a batch is open
func (db *BlockDatabase) InBatch() bool {
	db.RLock()
	defer db.RUnlock()
	return db.batchDepth > 0
}

// cacheKey - the overlay key for one (environment, key) pair
func (db *BlockDatabase) cacheKey(sel schema.Database, key []byte) string {
	return envNames[db.envIndex(sel)] + string(key)
}

// put - stage or write one key/value pair
func (db *BlockDatabase) put(sel schema.Database, key []byte, value []byte) {
	db.Lock()
	defer db.Unlock()
	if !db.isOpen {
		logger.Panic("storage.put: database is not open")
	}
	if db.batchDepth > 0 {
		db.cache.SetPut(db.cacheKey(sel, key), value)
		db.batches[db.envIndex(sel)].Put(key, value)
		return
	}
	err := db.env(sel).Put(key, value, nil)
	logger.PanicIfError("storage.put", err)
}

// remove - stage or write one delete
func (db *BlockDatabase) remove(sel schema.Database, key []byte) {
	db.Lock()
	defer db.Unlock()
	if !db.isOpen {
		logger.Panic("storage.remove: database is not open")
	}
	if db.batchDepth > 0 {
		db.cache.SetDelete(db.cacheKey(sel, key))
		db.batches[db.envIndex(sel)].Delete(key)
		return
	}
	err := db.env(sel).Delete(key, nil)
	logger.PanicIfError("storage.remove", err)
}

// get - read one value, observing any open batch
//
// nil means not found; the result is a fresh copy
func (db *BlockDatabase) get(sel schema.Database, key []byte) []byte {
	db.RLock()
	defer db.RUnlock()
	if !db.isOpen {
		return nil
	}
	if db.batchDepth > 0 {
		value, found, deleted := db.cache.Get(db.cacheKey(sel, key))
		if deleted {
			return nil
		}
		if found {
			out := make([]byte, len(value))
			copy(out, value)
			return out
		}
	}
	value, err := db.env(sel).Get(key, nil)
	if nil != err {
		return nil
	}
	return value
}

// has - key existence, observing any open batch
func (db *BlockDatabase) has(sel schema.Database, key []byte) bool {
	db.RLock()
	defer db.RUnlock()
	if !db.isOpen {
		return false
	}
	if db.batchDepth > 0 {
		_, found, deleted := db.cache.Get(db.cacheKey(sel, key))
		if deleted {
			return false
		}
		if found {
			return true
		}
	}
	found, err := db.env(sel).Has(key, nil)
	if nil != err {
		return false
	}
	return found
}
