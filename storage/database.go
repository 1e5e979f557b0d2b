// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitmark-inc/logger"

	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/chain"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
)

// environment names are also the directory names under basedir
const (
	envBlocks = iota
	envHeaders
	envHistory
	envTxHints
	envCount
)

var envNames = [envCount]string{"blocks", "headers", "history", "txhints"}

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentDBVersion = 0x100

// BlockDatabase - the multiplexed block store
//
// one writer, many readers; see the package comment for the batch
// and iterator contracts
type BlockDatabase struct {
	sync.RWMutex

	log     *logger.L
	basedir string
	params  *chain.Parameters
	dbType  schema.DBType
	prune   schema.PruneType

	envs    [envCount]*leveldb.DB
	batches [envCount]*leveldb.Batch

	batchDepth int
	cache      Cache

	validDup     map[uint32]uint8
	hashKeyCache Cache

	isOpen bool
}

// Open - open the fullnode database layout
//
// four environments under basedir; creates and stamps fresh stores,
// verifies magic and version on reopen
func Open(basedir string, params *chain.Parameters, dbType schema.DBType, prune schema.PruneType) (*BlockDatabase, error) {
	if schema.DBTypeSuper == dbType {
		return OpenSupernode(basedir, params, prune)
	}
	return open(basedir, params, dbType, prune, []int{envBlocks, envHeaders, envHistory, envTxHints})
}

// OpenSupernode - open the supernode layout
//
// headers stays separate, everything else folds into blocks
func OpenSupernode(basedir string, params *chain.Parameters, prune schema.PruneType) (*BlockDatabase, error) {
	return open(basedir, params, schema.DBTypeSuper, prune, []int{envBlocks, envHeaders})
}

func open(basedir string, params *chain.Parameters, dbType schema.DBType, prune schema.PruneType, envList []int) (*BlockDatabase, error) {

	db := &BlockDatabase{
		log:          logger.New("storage"),
		basedir:      basedir,
		params:       params,
		dbType:       dbType,
		prune:        prune,
		cache:        newCache(),
		hashKeyCache: newCache(),
		validDup:     make(map[uint32]uint8),
	}
	db.log.Infof("opening databases: %s  type: %s  prune: %s", basedir, dbType, prune)

	ok := false
	defer func() {
		if !ok {
			db.closeAll()
		}
	}()

	for _, env := range envList {
		handle, err := openEnv(filepath.Join(basedir, envNames[env]))
		if nil != err {
			db.log.Errorf("open %q failed: %s", envNames[env], err)
			return nil, err
		}
		db.envs[env] = handle
		db.batches[env] = new(leveldb.Batch)

		err = db.checkOrStampEnv(handle)
		if nil != err {
			return nil, err
		}
	}

	db.isOpen = true
	err := db.loadValidDupTable()
	if nil != err {
		return nil, err
	}

	ok = true
	return db, nil
}

func openEnv(dir string) (*leveldb.DB, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}
	return leveldb.OpenFile(dir, opt)
}

// checkOrStampEnv - verify magic/version on reopen, stamp when fresh
func (db *BlockDatabase) checkOrStampEnv(handle *leveldb.DB) error {

	versionValue, err := handle.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		// a fresh store resolves "whatever" to the defaults
		if schema.DBTypeWhatever == db.dbType {
			db.dbType = schema.DBTypeFull
		}
		if schema.PruneWhatever == db.prune {
			db.prune = schema.PruneNone
		}
		// stamp version and info record
		versionValue = make([]byte, 4)
		binary.BigEndian.PutUint32(versionValue, currentDBVersion)
		err = handle.Put(versionKey, versionValue, nil)
		if nil != err {
			return err
		}
		info := blockrecord.NewDBInfo(db.params.MagicBytes(), db.dbType, db.prune)
		return handle.Put(schema.PrefixDBInfo.Key(nil), info.Serialise(), nil)
	} else if nil != err {
		return err
	}

	if 4 != len(versionValue) {
		return fault.ErrInvalidStructure
	}
	version := binary.BigEndian.Uint32(versionValue)
	if version > currentDBVersion {
		db.log.Criticalf("database version: %d > current version: %d", version, currentDBVersion)
		return fault.ErrDatabaseVersionTooNew
	}

	infoValue, err := handle.Get(schema.PrefixDBInfo.Key(nil), nil)
	if nil != err {
		return fault.ErrInvalidStructure
	}
	info := &blockrecord.DBInfo{}
	err = info.Parse(infoValue)
	if nil != err {
		return err
	}
	if info.Magic != db.params.MagicBytes() {
		db.log.Criticalf("database magic: %x  configured network: %x", info.Magic, db.params.MagicBytes())
		return fault.ErrWrongNetworkMagic
	}

	// "whatever" adopts whatever the store was created with;
	// anything else must match exactly
	if schema.DBTypeWhatever == db.dbType {
		db.dbType = info.Type
	} else if info.Type != db.dbType {
		db.log.Criticalf("database type: %s  configured type: %s", info.Type, db.dbType)
		return fault.ErrInvalidStructure
	}
	if schema.PruneWhatever == db.prune {
		db.prune = info.Prune
	} else if info.Prune != db.prune {
		db.log.Criticalf("database prune: %s  configured prune: %s", info.Prune, db.prune)
		return fault.ErrInvalidStructure
	}
	return nil
}

// env - route a logical sub-database to its environment
func (db *BlockDatabase) env(sel schema.Database) *leveldb.DB {
	return db.envs[db.envIndex(sel)]
}

func (db *BlockDatabase) envIndex(sel schema.Database) int {
	if schema.Headers == sel {
		return envHeaders
	}
	if schema.DBTypeSuper == db.dbType {
		return envBlocks
	}
	switch sel {
	case schema.History:
		return envHistory
	case schema.TxHints:
		return envTxHints
	default:
		// blkdata and spentness share the block store
		return envBlocks
	}
}

// DBType - the mode this database was opened with
func (db *BlockDatabase) DBType() schema.DBType {
	return db.dbType
}

// PruneType - the retention policy this database was opened with
func (db *BlockDatabase) PruneType() schema.PruneType {
	return db.prune
}

// Parameters - the network this database belongs to
func (db *BlockDatabase) Parameters() *chain.Parameters {
	return db.params
}

// IsOpen - the database accepts operations
func (db *BlockDatabase) IsOpen() bool {
	db.RLock()
	defer db.RUnlock()
	return db.isOpen
}

// Close - close every environment
//
// idempotent; an unbalanced open batch is reported and its writes
// are dropped
func (db *BlockDatabase) Close() error {
	db.Lock()
	defer db.Unlock()

	if !db.isOpen {
		return nil
	}
	err := error(nil)
	if db.batchDepth > 0 {
		db.log.Criticalf("close with %d open batches", db.batchDepth)
		err = fault.ErrUnbalancedBatch
	}
	db.closeAll()
	db.isOpen = false
	return err
}

func (db *BlockDatabase) closeAll() {
	for i, handle := range db.envs {
		if nil != handle {
			handle.Close()
			db.envs[i] = nil
		}
	}
}

// NukeHeaders - drop only the header store for a clean header rescan
func (db *BlockDatabase) NukeHeaders() error {
	db.Lock()
	defer db.Unlock()

	if nil != db.envs[envHeaders] {
		db.envs[envHeaders].Close()
		db.envs[envHeaders] = nil
	}
	dir := filepath.Join(db.basedir, envNames[envHeaders])
	err := os.RemoveAll(dir)
	if nil != err {
		return err
	}
	handle, err := openEnv(dir)
	if nil != err {
		return err
	}
	db.envs[envHeaders] = handle
	db.validDup = make(map[uint32]uint8)
	return db.checkOrStampEnv(handle)
}

// DestroyAndReset - erase every environment and recreate them empty
func (db *BlockDatabase) DestroyAndReset() error {
	db.Lock()
	defer db.Unlock()

	opened := make([]int, 0, envCount)
	for i, handle := range db.envs {
		if nil != handle {
			handle.Close()
			db.envs[i] = nil
			opened = append(opened, i)
		}
	}
	for _, i := range opened {
		err := os.RemoveAll(filepath.Join(db.basedir, envNames[i]))
		if nil != err {
			return err
		}
	}
	for _, i := range opened {
		handle, err := openEnv(filepath.Join(db.basedir, envNames[i]))
		if nil != err {
			return err
		}
		db.envs[i] = handle
		db.batches[i] = new(leveldb.Batch)
		err = db.checkOrStampEnv(handle)
		if nil != err {
			return err
		}
	}
	db.validDup = make(map[uint32]uint8)
	db.cache.Clear()
	db.hashKeyCache.Clear()
	db.batchDepth = 0
	return nil
}

// PutDBInfo - rewrite the info record of one sub-database
func (db *BlockDatabase) PutDBInfo(sel schema.Database, info *blockrecord.DBInfo) {
	db.put(sel, schema.PrefixDBInfo.Key(nil), info.Serialise())
}

// GetDBInfo - read the info record of one sub-database
func (db *BlockDatabase) GetDBInfo(sel schema.Database) (*blockrecord.DBInfo, error) {
	value := db.get(sel, schema.PrefixDBInfo.Key(nil))
	if nil == value {
		return nil, fault.ErrKeyNotFound
	}
	info := &blockrecord.DBInfo{}
	err := info.Parse(value)
	if nil != err {
		return nil, err
	}
	return info, nil
}

// TopBlock - current top height and hash from the block store info
func (db *BlockDatabase) TopBlock() (uint32, chainhash.Hash, error) {
	info, err := db.GetDBInfo(schema.BlkData)
	if nil != err {
		return 0, chainhash.Hash{}, err
	}
	return info.TopBlockHgt, info.TopBlockHash, nil
}

// SetTopBlock - update the top pointer in the block store info
//
// this must be the last write of a block ingest batch: a reader that
// observes the new top is guaranteed to observe the block's records
func (db *BlockDatabase) SetTopBlock(height uint32, hash chainhash.Hash) error {
	info, err := db.GetDBInfo(schema.BlkData)
	if nil != err {
		return err
	}
	info.TopBlockHgt = height
	info.TopBlockHash = hash
	db.PutDBInfo(schema.BlkData, info)

	if db.envIndex(schema.Headers) != db.envIndex(schema.BlkData) {
		headerInfo, err := db.GetDBInfo(schema.Headers)
		if nil != err {
			return err
		}
		headerInfo.TopBlockHgt = height
		headerInfo.TopBlockHash = hash
		db.PutDBInfo(schema.Headers, headerInfo)
	}
	return nil
}
