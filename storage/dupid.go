// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// DupSentinel - "use the valid dup id at this height"
const DupSentinel uint8 = 0xff

// loadValidDupTable - prime the in-memory height → valid dup map
//
// the table is authoritative while the database is open; the store
// remains the fallback on a miss
func (db *BlockDatabase) loadValidDupTable() error {
	iter := db.NewIterator(schema.Headers)
	defer iter.Release()

	count := 0
	for ok := iter.SeekToPrefix(schema.PrefixHeadHgt, nil); ok; ok = iter.AdvanceWithinPrefix(schema.PrefixHeadHgt) {
		keyReader := iter.KeyReader()
		err := keyReader.Advance(1) // prefix byte
		if nil != err {
			return fault.ErrInvalidStructure
		}
		heightBytes, err := keyReader.GetBytesRef(4)
		if nil != err {
			return fault.ErrInvalidStructure
		}
		height := uint32(heightBytes[0])<<24 | uint32(heightBytes[1])<<16 |
			uint32(heightBytes[2])<<8 | uint32(heightBytes[3])

		hhl := &blockrecord.HeadHgtList{Height: height}
		err = hhl.Parse(iter.Value())
		if nil != err {
			return err
		}
		if dup, ok := hhl.ValidDupID(); ok {
			db.validDup[height] = dup
			count += 1
		}
	}
	db.log.Debugf("valid dup table: %d heights", count)
	return nil
}

// GetValidDupIDForHeight - the valid dup id at a height
//
// second result is false when no header is stored at the height
func (db *BlockDatabase) GetValidDupIDForHeight(height uint32) (uint8, bool) {
	db.RLock()
	dup, ok := db.validDup[height]
	db.RUnlock()
	if ok {
		return dup, true
	}

	// miss: the store is authoritative
	hhl, err := db.GetHeadHgtList(height)
	if nil != err {
		return 0, false
	}
	dup, ok = hhl.ValidDupID()
	if !ok {
		return 0, false
	}
	db.Lock()
	db.validDup[height] = dup
	db.Unlock()
	return dup, true
}

// SetValidDupIDForHeight - mark one dup id valid at a height
//
// with overwrite false an existing valid entry is left untouched
func (db *BlockDatabase) SetValidDupIDForHeight(height uint32, dup uint8, overwrite bool) error {
	hhl, err := db.GetHeadHgtList(height)
	if nil != err {
		return err
	}
	if _, already := hhl.ValidDupID(); already && !overwrite {
		return nil
	}
	hhl.SetValidDupID(dup)
	db.putHeadHgtList(hhl)

	db.Lock()
	db.validDup[height] = dup
	db.Unlock()
	return nil
}

// ClearValidDupID - drop the valid flag at a height during rollback
func (db *BlockDatabase) ClearValidDupID(height uint32) error {
	hhl, err := db.GetHeadHgtList(height)
	if nil != err {
		return err
	}
	for i := range hhl.Entries {
		hhl.Entries[i].Valid = false
	}
	db.putHeadHgtList(hhl)

	db.Lock()
	delete(db.validDup, height)
	db.Unlock()
	return nil
}

// GetDupForBlockHash - the dup id a header hash was stored under
func (db *BlockDatabase) GetDupForBlockHash(hash chainhash.Hash) (uint8, error) {
	sbh, err := db.GetBareHeaderByHash(hash)
	if nil != err {
		return 0, err
	}
	return sbh.DupID, nil
}

// GetHeadHgtList - every header stored at one height
func (db *BlockDatabase) GetHeadHgtList(height uint32) (*blockrecord.HeadHgtList, error) {
	value := db.get(schema.Headers, schema.PrefixHeadHgt.Key(schema.HeightKey(height)))
	if nil == value {
		return nil, fault.ErrHeadHgtListNotFound
	}
	hhl := &blockrecord.HeadHgtList{Height: height}
	err := hhl.Parse(value)
	if nil != err {
		return nil, err
	}
	return hhl, nil
}

func (db *BlockDatabase) putHeadHgtList(hhl *blockrecord.HeadHgtList) {
	db.put(schema.Headers, schema.PrefixHeadHgt.Key(schema.HeightKey(hhl.Height)), hhl.Serialise())
}
