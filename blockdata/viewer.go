// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdata

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/scripthistory"
	"github.com/blockvault/blockvaultd/storage"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// Viewer - read-only facade over the block database for wallet
// queries
//
// safe from any goroutine; the writer never blocks readers
type Viewer struct {
	db *storage.BlockDatabase
}

// NewViewer - viewer over an open database
func NewViewer(db *storage.BlockDatabase) *Viewer {
	return &Viewer{db: db}
}

// TopBlock - current top height and hash
func (v *Viewer) TopBlock() (uint32, chainhash.Hash, error) {
	return v.db.TopBlock()
}

// BlockByHeight - the valid block at a height, with transactions
func (v *Viewer) BlockByHeight(height uint32) (*blockrecord.StoredHeader, error) {
	return v.db.GetStoredHeader(height, storage.DupSentinel, true)
}

// BlockByHash - a block by its header hash, with transactions
func (v *Viewer) BlockByHash(hash chainhash.Hash) (*blockrecord.StoredHeader, error) {
	return v.db.GetStoredHeaderByHash(hash, true)
}

// HeaderByHash - a bare header by hash
func (v *Viewer) HeaderByHash(hash chainhash.Hash) (*blockrecord.StoredHeader, error) {
	return v.db.GetBareHeaderByHash(hash)
}

// Tx - a transaction by hash, decoded, with its confirmation height
func (v *Viewer) Tx(hash chainhash.Hash) (*wire.MsgTx, uint32, error) {
	stx, err := v.db.GetStoredTxByHash(hash, true)
	if nil != err {
		return nil, 0, err
	}
	tx, err := stx.Tx()
	if nil != err {
		return nil, 0, err
	}
	return tx, stx.Key.Height(), nil
}

// TxOut - one output with its spentness
func (v *Viewer) TxOut(txHash chainhash.Hash, index uint16) (*TxOutView, error) {
	stxo, err := v.db.ResolveTxOut(txHash, index)
	if nil != err {
		return nil, err
	}
	return &TxOutView{
		Value:   stxo.Value,
		Script:  stxo.Script,
		Spent:   transactionrecord.SpentnessSpent == stxo.Spentness,
		ScrAddr: scripthistory.FromScript(stxo.Script),
	}, nil
}

// TxOutView - viewer projection of an output
type TxOutView struct {
	Value   uint64
	Script  []byte
	Spent   bool
	ScrAddr scripthistory.ScrAddr
}

// Balance - confirmed balance of a script address
func (v *Viewer) Balance(scrAddr scripthistory.ScrAddr) (uint64, error) {
	balance, err := v.db.GetBalanceForScrAddr(scrAddr)
	if fault.ErrScriptHistoryNotFound == err {
		return 0, nil // never seen: zero, not an error
	}
	return balance, err
}

// History - the script history over an inclusive height range
func (v *Viewer) History(scrAddr scripthistory.ScrAddr, startBlock uint32, endBlock uint32) (*scripthistory.History, error) {
	return v.db.GetScriptHistory(scrAddr, startBlock, endBlock)
}

// UTXOs - every unspent output of a script address
func (v *Viewer) UTXOs(scrAddr scripthistory.ScrAddr, withMultisig bool) (map[schema.OutKey]uint64, error) {
	return v.db.GetFullUTXOMapForSSH(scrAddr, withMultisig)
}
