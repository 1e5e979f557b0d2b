// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdata

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blockvault/blockvaultd/blockrecord"
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/scripthistory"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// applyPending - drain the block file stream after a wake-up
func (m *Manager) applyPending() error {
	err := m.reader.Rescan()
	if nil != err {
		return err
	}

	var reorgConflict error
	for {
		raw, err := m.reader.NextBlock()
		if io.EOF == err {
			break
		}
		if nil != err {
			return err
		}
		_, err = m.applyRawBlock(raw)
		if nil != err {
			if fault.IsErrReorg(err) {
				// remember, keep draining the stream
				reorgConflict = err
				continue
			}
			return err
		}
	}
	return reorgConflict
}

// applyRawBlock - store one raw block and advance the chain state
//
// an already applied block reports false.  a block extending the
// valid chain is applied directly; a side branch no longer than the
// valid chain is stored unapplied; a longer side branch triggers a reorg.  a block whose
// parent is unknown is a reorg conflict for the caller
func (m *Manager) applyRawBlock(raw []byte) (bool, error) {

	block := &wire.MsgBlock{}
	err := block.Deserialize(bytes.NewReader(raw))
	if nil != err {
		return false, fault.ErrInvalidStructure
	}
	hash := block.BlockHash()

	height, ok := m.organiseHeader(&block.Header)
	if !ok {
		return false, fault.ErrUnknownParentBlock
	}

	// skip anything already carrying block data
	if stored, err := m.db.GetBareHeaderByHash(hash); nil == err && stored.Applied {
		return false, nil
	}

	top, topHash, err := m.db.TopBlock()
	if nil != err {
		return false, err
	}

	genesisInsert := blockrecord.InvalidHeight == top && 0 == height
	extendsTop := blockrecord.InvalidHeight != top && block.Header.PrevBlock == topHash

	switch {
	case genesisInsert, extendsTop:
		m.db.BeginBatch()
		sbh, err := m.storeBlockData(block, raw, height, true)
		if nil != err {
			m.db.AbortBatch()
			return false, err
		}
		err = m.applyStoredBlock(sbh)
		if nil != err {
			m.db.AbortBatch()
			return false, err
		}
		err = m.db.CommitBatch()
		if nil != err {
			return false, err
		}
		if m.ready.Load() {
			m.callback.Run(ActionNewBlock, height, hash.String())
		}
		return true, nil

	case height <= top:
		// side branch no longer than the valid chain: keep the data, do not apply
		m.db.BeginBatch()
		_, err := m.storeBlockData(block, raw, height, false)
		if nil != err {
			m.db.AbortBatch()
			return false, err
		}
		err = m.db.CommitBatch()
		if nil != err {
			return false, err
		}
		m.log.Infof("side branch block %v at height %d", hash, height)
		return true, nil

	default:
		// longer side branch: switch over
		err = m.reorgTo(hash, height, block, raw)
		if nil != err {
			return false, err
		}
		m.callback.Run(ActionNewBlock, height, hash.String())
		return true, nil
	}
}

// storeBlockData - write header, transactions and outputs
//
// valid selects whether this dup id becomes the valid one
func (m *Manager) storeBlockData(block *wire.MsgBlock, raw []byte, height uint32, valid bool) (*blockrecord.StoredHeader, error) {

	sbh, err := blockrecord.NewStoredHeader(&block.Header, height)
	if nil != err {
		return nil, err
	}
	sbh.NumTx = uint32(len(block.Transactions))
	sbh.NumBytes = uint32(len(raw))
	sbh.Txs = make(map[uint16]*transactionrecord.StoredTx)

	for i, tx := range block.Transactions {
		stx, err := transactionrecord.NewStoredTx(tx, schema.TxKey{}, true)
		if nil != err {
			return nil, err
		}
		stx.Outs = make(map[uint16]*transactionrecord.StoredTxOut)
		for o, txOut := range tx.TxOut {
			stx.Outs[uint16(o)] = &transactionrecord.StoredTxOut{
				Value:      uint64(txOut.Value),
				Script:     txOut.PkScript,
				Spentness:  transactionrecord.SpentnessUnspent,
				IsCoinbase: 0 == i,
				HasParent:  true,
				ParentHash: stx.Hash,
			}
		}
		sbh.Txs[uint16(i)] = stx
	}

	_, err = m.db.PutStoredHeader(sbh, true, valid)
	if nil != err {
		return nil, err
	}
	return sbh, nil
}

// applyStoredBlock - advance spentness, undo data, history and the
// top pointer for a stored block
//
// the top update is last: it is the linearisation point for readers
func (m *Manager) applyStoredBlock(sbh *blockrecord.StoredHeader) error {

	sud, err := m.db.ComputeUndoDataFromStoredHeader(sbh)
	if nil != err {
		return err
	}

	// consume the prevouts
	for txIndex := uint16(0); txIndex < uint16(len(sbh.Txs)); txIndex += 1 {
		stx := sbh.Txs[txIndex]
		if 0 == txIndex {
			continue
		}
		tx, err := stx.Tx()
		if nil != err {
			return err
		}
		for inIndex, txIn := range tx.TxIn {
			prevout := txIn.PreviousOutPoint
			prevKey, err := m.db.GetTxKeyForHash(prevout.Hash)
			if nil != err {
				return fault.ErrTxOutNotFound
			}
			spender := schema.NewTxKey(sbh.Height, sbh.DupID, txIndex).Out(uint16(inIndex))
			stxo, err := m.db.MarkTxOutSpent(prevKey.Out(uint16(prevout.Index)), spender)
			if nil != err {
				return err
			}
			err = m.historySpend(sbh, stxo)
			if nil != err {
				return err
			}
		}
	}

	// credit the new outputs
	for txIndex := uint16(0); txIndex < uint16(len(sbh.Txs)); txIndex += 1 {
		stx := sbh.Txs[txIndex]
		for o := uint16(0); o < stx.NumTxOut; o += 1 {
			stxo := stx.Outs[o]
			stxo.Key = schema.NewTxKey(sbh.Height, sbh.DupID, txIndex).Out(o)
			err = m.historyReceive(sbh, stxo)
			if nil != err {
				return err
			}
		}
	}

	m.db.PutUndoData(sud)

	err = m.db.SetValidDupIDForHeight(sbh.Height, sbh.DupID, true)
	if nil != err {
		return err
	}
	return m.db.SetTopBlock(sbh.Height, sbh.Hash)
}

// trackedHistory - the history of a script, when it is tracked
//
// supernode tracks everything, creating histories on demand; the
// other modes track only registered scripts
func (m *Manager) trackedHistory(scrAddr scripthistory.ScrAddr) (*scripthistory.History, bool) {
	ssh, err := m.db.GetScriptHistorySummary(scrAddr)
	if nil == err {
		return ssh, true
	}
	if schema.DBTypeSuper == m.db.DBType() {
		return scripthistory.NewHistory(scrAddr), true
	}
	return nil, false
}

// historyReceive - record a received output at its block
func (m *Manager) historyReceive(sbh *blockrecord.StoredHeader, stxo *transactionrecord.StoredTxOut) error {
	hgtx := sbh.Hgtx()

	credit := func(scrAddr scripthistory.ScrAddr, kind scripthistory.TxioKind) error {
		ssh, tracked := m.trackedHistory(scrAddr)
		if !tracked {
			return nil
		}
		sub, err := m.db.FetchSubHistory(ssh, hgtx, true, false)
		if nil != err {
			return err
		}
		if _, exists := findTxio(sub, stxo.Key); exists {
			return nil // rescan: already indexed
		}
		sub.Insert(scripthistory.Txio{
			Key:   stxo.Key,
			Kind:  kind,
			Value: stxo.Value,
		})
		ssh.TotalTxioCount += 1
		if scripthistory.TxioReceived == kind {
			ssh.TotalUnspent += stxo.Value
		}
		ssh.UseMultipleEntries = ssh.TotalTxioCount > 1
		if sbh.Height > ssh.AlreadyScannedUpTo || scripthistory.ScannedUpToUnknown == ssh.AlreadyScannedUpTo {
			ssh.AlreadyScannedUpTo = sbh.Height
		}
		m.db.PutScriptHistorySummary(ssh)
		m.db.PutSubHistory(sub)
		return nil
	}

	err := credit(scripthistory.FromScript(stxo.Script), scripthistory.TxioReceived)
	if nil != err {
		return err
	}
	for _, member := range scripthistory.MultisigMembers(stxo.Script) {
		err = credit(member, scripthistory.TxioMultisig)
		if nil != err {
			return err
		}
	}
	return nil
}

// historySpend - record a spend of an earlier output at this block
func (m *Manager) historySpend(sbh *blockrecord.StoredHeader, stxo *transactionrecord.StoredTxOut) error {
	scrAddr := scripthistory.FromScript(stxo.Script)
	ssh, tracked := m.trackedHistory(scrAddr)
	if !tracked {
		return nil
	}
	hgtx := sbh.Hgtx()
	sub, err := m.db.FetchSubHistory(ssh, hgtx, true, false)
	if nil != err {
		return err
	}
	if _, exists := findTxio(sub, stxo.Key); exists {
		return nil // rescan: already indexed
	}
	sub.Insert(scripthistory.Txio{
		Key:   stxo.Key,
		Kind:  scripthistory.TxioSpent,
		Value: stxo.Value,
	})
	ssh.TotalTxioCount += 1
	ssh.TotalUnspent -= stxo.Value
	ssh.UseMultipleEntries = true
	if sbh.Height > ssh.AlreadyScannedUpTo || scripthistory.ScannedUpToUnknown == ssh.AlreadyScannedUpTo {
		ssh.AlreadyScannedUpTo = sbh.Height
	}
	m.db.PutScriptHistorySummary(ssh)
	m.db.PutSubHistory(sub)
	return nil
}

func findTxio(sub *scripthistory.SubHistory, key schema.OutKey) (scripthistory.Txio, bool) {
	for _, t := range sub.Txios {
		if t.Key == key {
			return t, true
		}
	}
	return scripthistory.Txio{}, false
}

// indexHistoryForBlock - shard maintenance used by the rescan path
func (m *Manager) indexHistoryForBlock(sbh *blockrecord.StoredHeader) error {

	// credits first so self-spends within one block resolve
	for txIndex := uint16(0); txIndex < uint16(len(sbh.Txs)); txIndex += 1 {
		stx := sbh.Txs[txIndex]
		for o := uint16(0); o < stx.NumTxOut; o += 1 {
			err := m.historyReceive(sbh, stx.Outs[o])
			if nil != err {
				return err
			}
		}
	}

	for txIndex := uint16(1); txIndex < uint16(len(sbh.Txs)); txIndex += 1 {
		stx := sbh.Txs[txIndex]
		tx, err := stx.Tx()
		if nil != err {
			return err
		}
		for _, txIn := range tx.TxIn {
			prevout := txIn.PreviousOutPoint
			stxo, err := m.db.ResolveTxOut(prevout.Hash, uint16(prevout.Index))
			if nil != err {
				return fault.ErrTxOutNotFound
			}
			err = m.historySpend(sbh, stxo)
			if nil != err {
				return err
			}
		}
	}
	return nil
}

// reorgTo - switch the valid chain over to a longer branch
//
// rolls the old branch back with its undo data, flips the valid dup
// ids and replays the new branch from stored block data.  the whole
// switch is one batch; any error aborts it and surfaces
func (m *Manager) reorgTo(newTip chainhash.Hash, newHeight uint32, tipBlock *wire.MsgBlock, tipRaw []byte) error {

	top, _, err := m.db.TopBlock()
	if nil != err {
		return err
	}

	// collect the new branch down to the fork point
	branch := []chainhash.Hash{newTip}
	cursor := tipBlock.Header.PrevBlock
	forkHeight := newHeight
	for {
		if 0 == forkHeight {
			break
		}
		parent, err := m.db.GetBareHeaderByHash(cursor)
		if nil != err {
			return fault.ErrUnknownParentBlock
		}
		forkHeight = parent.Height

		valid, ok := m.db.GetValidDupIDForHeight(parent.Height)
		if ok && valid == parent.DupID {
			break // on the old valid chain: this is the fork point
		}
		branch = append(branch, parent.Hash)
		cursor = parent.PreviousHash()
	}

	m.log.Warnf("reorg: top %d to %d, fork at %d", top, newHeight, forkHeight)

	// store the new tip's data first, unapplied, so the replay can
	// read it back through an iterator
	m.db.BeginBatch()
	_, err = m.storeBlockData(tipBlock, tipRaw, newHeight, false)
	if nil != err {
		m.db.AbortBatch()
		return err
	}
	err = m.db.CommitBatch()
	if nil != err {
		return err
	}

	// the switch itself is one atomic batch
	m.db.BeginBatch()

	// roll the old branch back, newest first
	for h := top; h > forkHeight; h -= 1 {
		dup, ok := m.db.GetValidDupIDForHeight(h)
		if !ok {
			m.db.AbortBatch()
			return fault.ErrDoubleValidDupID
		}
		sud, err := m.undoDataFor(h, dup)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
		err = m.rollbackHistory(sud)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
		err = m.db.ApplyUndoData(sud)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
		err = m.db.ClearValidDupID(h)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
	}

	// replay the new branch forward from its stored data
	for i := len(branch) - 1; i >= 0; i -= 1 {
		sbh, err := m.db.GetStoredHeaderByHash(branch[i], true)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
		err = m.applyStoredBlock(sbh)
		if nil != err {
			m.db.AbortBatch()
			return err
		}
	}

	return m.db.CommitBatch()
}

// undoDataFor - the undo record of a block about to be rolled back
//
// fullnode reads the persisted record.  supernode never persists
// undo data, so it is synthesised from the stored block: the spent
// outputs are currently marked spent by exactly the block being
// rolled back, so their pre-spend state is the same record unspent
func (m *Manager) undoDataFor(height uint32, dup uint8) (*blockrecord.UndoData, error) {
	sud, err := m.db.GetUndoData(height, dup)
	if nil == err {
		return sud, nil
	}
	if fault.ErrSpentnessNotTracked != err {
		return nil, err
	}

	sud, err = m.db.ComputeUndoDataForBlock(height, dup)
	if nil != err {
		return nil, err
	}
	for _, stxo := range sud.SpentOutputs {
		stxo.Spentness = transactionrecord.SpentnessUnspent
		stxo.SpentBy = schema.OutKey{}
	}
	return sud, nil
}

// rollbackHistory - reverse the history entries of one rolled-back
// block before its records disappear
func (m *Manager) rollbackHistory(sud *blockrecord.UndoData) error {
	hgtx := sud.Hgtx()

	// restored spends lose their spent txio
	for _, stxo := range sud.SpentOutputs {
		scrAddr := scripthistory.FromScript(stxo.Script)
		ssh, tracked := m.trackedHistory(scrAddr)
		if !tracked {
			continue
		}
		sub, err := m.db.FetchSubHistory(ssh, hgtx, false, false)
		if nil != err {
			continue
		}
		if !sub.Remove(stxo.Key) {
			continue
		}
		ssh.TotalTxioCount -= 1
		ssh.TotalUnspent += stxo.Value
		m.putOrDeleteShard(ssh, sub)
	}

	// deleted outputs lose their received txio
	for _, outKey := range sud.CreatedOutputs {
		stxo, err := m.db.GetStoredTxOut(outKey)
		if nil != err {
			continue
		}
		remove := func(scrAddr scripthistory.ScrAddr, received bool) {
			ssh, tracked := m.trackedHistory(scrAddr)
			if !tracked {
				return
			}
			sub, err := m.db.FetchSubHistory(ssh, hgtx, false, false)
			if nil != err {
				return
			}
			if !sub.Remove(outKey) {
				return
			}
			ssh.TotalTxioCount -= 1
			if received {
				ssh.TotalUnspent -= stxo.Value
			}
			m.putOrDeleteShard(ssh, sub)
		}
		remove(scripthistory.FromScript(stxo.Script), true)
		for _, member := range scripthistory.MultisigMembers(stxo.Script) {
			remove(member, false)
		}
	}
	return nil
}

// putOrDeleteShard - persist a shard, dropping it when empty
func (m *Manager) putOrDeleteShard(ssh *scripthistory.History, sub *scripthistory.SubHistory) {
	if 0 == len(sub.Txios) {
		m.db.DeleteSubHistory(ssh.ScrAddr, sub.Hgtx)
	} else {
		m.db.PutSubHistory(sub)
	}
	ssh.UseMultipleEntries = ssh.TotalTxioCount > 1
	m.db.PutScriptHistorySummary(ssh)
}
