// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdata

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"

	"github.com/blockvault/blockvaultd/blockfile"
	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/chain"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/storage"
)

// Config - everything the manager needs to run
type Config struct {
	ChainName    string
	DBDirectory  string
	BlockFileDir string
	DBType       schema.DBType
	Prune        schema.PruneType

	// disable the filesystem watcher (tests drive Notify directly)
	NoWatcher bool
}

// Manager - the background indexer
type Manager struct {
	log    *logger.L
	config Config
	params *chain.Parameters

	db      *storage.BlockDatabase
	reader  *blockfile.Reader
	watcher *blockfile.Watcher

	inject   *Inject
	callback Callback

	// header chain organisation: hash → height
	chainMu      sync.RWMutex
	heightByHash map[chainhash.Hash]uint32

	// progress callback throttle
	limiter *rate.Limiter

	ready    atomic.Bool
	stopping atomic.Bool
	stop     chan struct{}
	finished chan struct{}
}

// NewManager - build a manager; nothing runs until Start
func NewManager(config Config) (*Manager, error) {
	params, err := chain.Select(config.ChainName)
	if nil != err {
		return nil, err
	}
	return &Manager{
		log:          logger.New("blockdata"),
		config:       config,
		params:       params,
		heightByHash: make(map[chainhash.Hash]uint32),
		limiter:      rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		stop:         make(chan struct{}),
		finished:     make(chan struct{}),
	}, nil
}

// DB - the underlying database, for read-only viewers
func (m *Manager) DB() *storage.BlockDatabase {
	return m.db
}

// Inject - the rendezvous handle
func (m *Manager) Inject() *Inject {
	return m.inject
}

// IsReady - monotonic latch: true once the initial scan completed,
// stays true until shutdown
func (m *Manager) IsReady() bool {
	return m.ready.Load()
}

// Start - open the database and launch the worker
func (m *Manager) Start(callback Callback, inject *Inject) error {
	if nil == callback {
		callback = NoopCallback{}
	}
	if nil == inject {
		inject = NewInject()
	}
	m.callback = callback
	m.inject = inject

	db, err := storage.Open(m.config.DBDirectory, m.params, m.config.DBType, m.config.Prune)
	if nil != err {
		return err
	}
	m.db = db

	reader, err := blockfile.NewReader(m.config.BlockFileDir, m.params.MagicBytes())
	if nil != err {
		db.Close()
		return err
	}
	m.reader = reader

	if !m.config.NoWatcher {
		watcher, err := blockfile.NewWatcher(m.config.BlockFileDir, m.inject.Notify)
		if nil != err {
			reader.Close()
			db.Close()
			return err
		}
		m.watcher = watcher
	}

	go m.run()
	return nil
}

// RequestShutdown - non-blocking shutdown request
//
// returns true when the caller should still wait for the final
// notification
func (m *Manager) RequestShutdown() bool {
	if m.stopping.Swap(true) {
		return false
	}
	close(m.stop)
	m.inject.Notify()
	return true
}

// ShutdownAndWait - request shutdown and drain the worker
func (m *Manager) ShutdownAndWait() {
	m.RequestShutdown()
	<-m.finished
}

// fail - abort the in-flight batch and latch the failure
func (m *Manager) fail(kind FailureKind, err error) {
	m.log.Criticalf("worker failed: %s: %s", kind, err)
	if m.db.InBatch() {
		m.db.AbortBatch()
	}
	m.inject.SetFailureFlag(kind)
	m.callback.Run(ActionFailure, 0, err.Error())
}

// failureKindOf - map a fault class onto a failure kind
func failureKindOf(err error) FailureKind {
	switch {
	case fault.IsErrCorrupt(err):
		return FailureCorrupt
	case fault.IsErrInvariant(err):
		return FailureInvariant
	default:
		return FailureIO
	}
}

// run - the worker state machine
func (m *Manager) run() {
	defer close(m.finished)
	defer func() {
		m.ready.Store(false)
		if nil != m.watcher {
			m.watcher.Stop()
		}
		m.reader.Close()
		m.db.SweepZeroConf()
		m.db.Close()
		m.callback.Run(ActionExited, 0, "")
	}()

	m.progress(PhaseInit, 0, 0)

	err := m.scanHeaders()
	if nil != err {
		m.fail(failureKindOf(err), err)
		return
	}
	if m.stopping.Load() {
		return
	}

	err = m.scanBlocks()
	if nil != err {
		m.fail(failureKindOf(err), err)
		return
	}
	if m.stopping.Load() {
		return
	}

	err = m.buildHistory()
	if nil != err {
		m.fail(failureKindOf(err), err)
		return
	}

	m.ready.Store(true)
	m.progress(PhaseReady, 1, 0)
	height, _, _ := m.db.TopBlock()
	m.callback.Run(ActionReady, height, "")

	// steady state: sleep on the rendezvous, apply pending work
	for {
		pending, alive := m.inject.awaitNotify(m.stop, 10*time.Millisecond)
		if !alive {
			return
		}

		err := m.applyPending()
		if nil != err {
			if fault.IsErrReorg(err) {
				// ask the outside world for more headers
				m.log.Warnf("reorg conflict: %s", err)
				m.callback.Run(ActionRefresh, 0, err.Error())
			} else {
				m.fail(failureKindOf(err), err)
				return
			}
		}

		m.inject.markRunComplete(pending)

		if m.stopping.Load() {
			return
		}
	}
}

// progress - throttled progress callback
func (m *Manager) progress(phase Phase, fraction float64, remaining uint32) {
	if PhaseReady != phase && !m.limiter.Allow() {
		return
	}
	m.callback.Progress(phase, nil, fraction, remaining, 0)
}

// scanHeaders - organise the header chain from the raw block files
//
// every header whose parent is known is placed at parent height + 1
// and stored bare; the genesis header anchors at zero
func (m *Manager) scanHeaders() error {
	m.log.Info("scanning headers…")

	m.chainMu.Lock()
	m.heightByHash = make(map[chainhash.Hash]uint32)
	m.chainMu.Unlock()

	// adopt already stored headers
	err := m.db.ReadAllHeaders(func(sbh *blockrecord.StoredHeader) error {
		m.chainMu.Lock()
		m.heightByHash[sbh.Hash] = sbh.Height
		m.chainMu.Unlock()
		return nil
	})
	if nil != err {
		return err
	}

	m.reader.Reset()
	count := 0

	m.db.BeginBatch()
	for {
		if m.stopping.Load() {
			break
		}
		raw, err := m.reader.NextBlock()
		if io.EOF == err {
			break
		}
		if nil != err {
			m.db.AbortBatch()
			return err
		}

		header := &wire.BlockHeader{}
		err = header.Deserialize(bytes.NewReader(raw[:blockrecord.HeaderLength]))
		if nil != err {
			m.db.AbortBatch()
			return fault.ErrInvalidStructure
		}

		height, ok := m.organiseHeader(header)
		if !ok {
			m.log.Warnf("orphan header: %v", header.BlockHash())
			continue
		}

		sbh, err := blockrecord.NewStoredHeader(header, height)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
		_, err = m.db.PutBareHeader(sbh, true)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
		count += 1
		m.progress(PhaseHeaders, float64(count)/float64(count+1), 0)
	}
	err = m.db.CommitBatch()
	if nil != err {
		return err
	}

	m.log.Infof("headers scanned: %d", count)
	m.progress(PhaseOrganizeChain, 1, 0)
	return nil
}

// organiseHeader - place one header on the chain
func (m *Manager) organiseHeader(header *wire.BlockHeader) (uint32, bool) {
	hash := header.BlockHash()

	m.chainMu.Lock()
	defer m.chainMu.Unlock()

	if height, known := m.heightByHash[hash]; known {
		return height, true
	}

	if hash == m.params.GenesisBlockHash {
		m.heightByHash[hash] = 0
		return 0, true
	}
	parentHeight, ok := m.heightByHash[header.PrevBlock]
	if !ok {
		return 0, false
	}
	height := parentHeight + 1
	m.heightByHash[hash] = height
	return height, true
}

// heightOf - header chain lookup of a block height by hash
func (m *Manager) heightOf(hash chainhash.Hash) (uint32, error) {
	m.chainMu.RLock()
	defer m.chainMu.RUnlock()
	height, ok := m.heightByHash[hash]
	if !ok {
		return 0, fault.ErrBlockHeaderNotFound
	}
	return height, nil
}

// scanBlocks - store full block payloads and undo data
func (m *Manager) scanBlocks() error {
	m.log.Info("scanning blocks…")

	m.reader.Reset()
	count := 0

	for {
		if m.stopping.Load() {
			return nil
		}
		raw, err := m.reader.NextBlock()
		if io.EOF == err {
			break
		}
		if nil != err {
			return err
		}

		applied, err := m.applyRawBlock(raw)
		if nil != err {
			return err
		}
		if applied {
			count += 1
			m.progress(PhaseBuildDB, float64(count)/float64(count+1), 0)
		}
	}

	m.log.Infof("blocks scanned: %d", count)
	return nil
}

// buildHistory - bring registered scripts up to the chain top
func (m *Manager) buildHistory() error {
	if schema.DBTypeSuper == m.db.DBType() {
		return nil // already complete: every script is tracked
	}

	top, _, err := m.db.TopBlock()
	if nil != err {
		return err
	}
	if blockrecord.InvalidHeight == top {
		return nil
	}

	scrAddrs, err := m.db.RegisteredScrAddrs()
	if nil != err {
		return err
	}

	stale := 0
	for _, scrAddr := range scrAddrs {
		ssh, err := m.db.GetScriptHistorySummary(scrAddr)
		if nil != err {
			return err
		}
		if ssh.AlreadyScannedUpTo < top || 0 == ssh.TotalTxioCount {
			stale += 1
		}
	}
	if 0 == stale {
		return nil
	}

	m.log.Infof("building history for %d scripts…", stale)
	m.progress(PhaseScanAddresses, 0, 0)
	return m.rescanHistory(top)
}

// rescanHistory - replay stored blocks through the history builder
func (m *Manager) rescanHistory(top uint32) error {
	m.db.BeginBatch()

	for height := uint32(0); height <= top; height += 1 {
		if m.stopping.Load() {
			break
		}
		sbh, err := m.db.GetStoredHeader(height, storage.DupSentinel, true)
		if nil != err {
			if fault.ErrBlockNotFound == err {
				continue
			}
			m.db.AbortBatch()
			return err
		}
		err = m.indexHistoryForBlock(sbh)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
		m.progress(PhaseScanAddresses, float64(height+1)/float64(top+1), 0)
	}
	return m.db.CommitBatch()
}
