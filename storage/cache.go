// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Cache - read-your-writes overlay for an open batch
//
// a get issued while a batch is open must observe that batch's own
// puts and deletes before falling through to the committed store
type Cache interface {
	Get(string) ([]byte, bool, bool)
	SetPut(string, []byte)
	SetDelete(string)
	Clear()
}

const (
	dbPut = iota
	dbDelete
)

const (
	defaultTimeout    = 1 * time.Minute
	defaultExpiration = 2 * time.Minute
)

type dbCache struct {
	cache *cache.Cache
}

type cacheData struct {
	op    int
	value []byte
}

func newCache() Cache {
	return &dbCache{
		cache: cache.New(defaultTimeout, defaultExpiration),
	}
}

// Get - returns (value, found, deleted)
//
// deleted reports a pending delete so the caller does not fall back
// to the committed value
func (c *dbCache) Get(key string) ([]byte, bool, bool) {
	obj, found := c.cache.Get(key)
	if !found {
		return nil, false, false
	}
	data := obj.(cacheData)
	if dbDelete == data.op {
		return nil, false, true
	}
	return data.value, true, false
}

func (c *dbCache) SetPut(key string, value []byte) {
	c.cache.Set(key, cacheData{op: dbPut, value: value}, defaultExpiration)
}

func (c *dbCache) SetDelete(key string) {
	c.cache.Set(key, cacheData{op: dbDelete}, defaultExpiration)
}

func (c *dbCache) Clear() {
	c.cache.Flush()
}
