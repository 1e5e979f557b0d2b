// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/blockvault/blockvaultd/fault"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/scripthistory"
	"github.com/blockvault/blockvaultd/transactionrecord"
)

// scriptKey - summary record key for one scrAddr
func scriptKey(scrAddr scripthistory.ScrAddr) []byte {
	return schema.PrefixScript.Key(scrAddr[:])
}

// subKey - shard record key for one scrAddr at one hgtx
func subKey(scrAddr scripthistory.ScrAddr, hgtx schema.Hgtx) []byte {
	tail := make([]byte, 0, scripthistory.ScrAddrLength+schema.HgtxLength)
	tail = append(tail, scrAddr[:]...)
	tail = append(tail, hgtx[:]...)
	return schema.PrefixSubSSH.Key(tail)
}

// PutScriptHistory - store the summary and every loaded shard
func (db *BlockDatabase) PutScriptHistory(ssh *scripthistory.History) {
	db.PutScriptHistorySummary(ssh)
	for _, sub := range ssh.Shards {
		db.PutSubHistory(sub)
	}
}

// PutScriptHistorySummary - store the summary record alone
//
// keeps the value size of hot addresses bounded
func (db *BlockDatabase) PutScriptHistorySummary(ssh *scripthistory.History) {
	db.put(schema.History, scriptKey(ssh.ScrAddr), ssh.Serialise())
}

// PutSubHistory - store one shard
func (db *BlockDatabase) PutSubHistory(sub *scripthistory.SubHistory) {
	db.put(schema.History, subKey(sub.ScrAddr, sub.Hgtx), sub.Serialise())
}

// DeleteSubHistory - remove one shard
func (db *BlockDatabase) DeleteSubHistory(scrAddr scripthistory.ScrAddr, hgtx schema.Hgtx) {
	db.remove(schema.History, subKey(scrAddr, hgtx))
}

// GetScriptHistorySummary - read the summary record alone
func (db *BlockDatabase) GetScriptHistorySummary(scrAddr scripthistory.ScrAddr) (*scripthistory.History, error) {
	value := db.get(schema.History, scriptKey(scrAddr))
	if nil == value {
		return nil, fault.ErrScriptHistoryNotFound
	}
	ssh := scripthistory.NewHistory(scrAddr)
	err := ssh.Parse(value)
	if nil != err {
		return nil, err
	}
	return ssh, nil
}

// GetScriptHistory - summary plus every shard in a height range
//
// both bounds are inclusive; shards arrive from a prefix scan so
// they are already height ordered
func (db *BlockDatabase) GetScriptHistory(scrAddr scripthistory.ScrAddr, startBlock uint32, endBlock uint32) (*scripthistory.History, error) {

	ssh, err := db.GetScriptHistorySummary(scrAddr)
	if nil != err {
		return nil, err
	}

	iter := db.NewIterator(schema.History)
	defer iter.Release()

	prefix := schema.PrefixSubSSH.Key(scrAddr[:])
	startHgtx := schema.HeightAndDupToHgtx(startBlock, 0)

	start := append(append([]byte(nil), prefix...), startHgtx[:]...)
	for ok := iter.SeekTo(start); ok; ok = iter.Advance() {
		if !iter.CheckKeyStartsWith(prefix) {
			break
		}
		sub, err := parseSubHistoryEntry(iter, scrAddr)
		if nil != err {
			return nil, err
		}
		if sub.Hgtx.Height() > endBlock {
			break
		}
		err = ssh.MergeShard(sub, true)
		if nil != err {
			return nil, err
		}
	}
	return ssh, nil
}

func parseSubHistoryEntry(iter *Iter, scrAddr scripthistory.ScrAddr) (*scripthistory.SubHistory, error) {
	keyReader := iter.KeyReader()
	err := keyReader.Advance(1 + scripthistory.ScrAddrLength)
	if nil != err {
		return nil, fault.ErrInvalidDBKey
	}
	hgtxBytes, err := keyReader.GetBytesRef(schema.HgtxLength)
	if nil != err {
		return nil, fault.ErrInvalidDBKey
	}
	hgtx, _ := schema.HgtxFromBytes(hgtxBytes)

	sub := &scripthistory.SubHistory{ScrAddr: scrAddr, Hgtx: hgtx}
	err = sub.Parse(iter.Value())
	if nil != err {
		return nil, err
	}
	return sub, nil
}

// FetchSubHistory - read one shard into a loaded history
//
// with createIfDNE a missing shard is created empty; with
// forceReadAndMerge the stored shard replaces a resident one even if
// already present
func (db *BlockDatabase) FetchSubHistory(ssh *scripthistory.History, hgtx schema.Hgtx, createIfDNE bool, forceReadAndMerge bool) (*scripthistory.SubHistory, error) {

	if sub := ssh.Shard(hgtx, false); nil != sub && !forceReadAndMerge {
		return sub, nil
	}

	value := db.get(schema.History, subKey(ssh.ScrAddr, hgtx))
	if nil == value {
		if !createIfDNE {
			return nil, fault.ErrScriptHistoryNotFound
		}
		return ssh.Shard(hgtx, true), nil
	}

	sub := &scripthistory.SubHistory{ScrAddr: ssh.ScrAddr, Hgtx: hgtx}
	err := sub.Parse(value)
	if nil != err {
		return nil, err
	}
	err = ssh.MergeShard(sub, forceReadAndMerge)
	if nil != err {
		return nil, err
	}
	return ssh.Shard(hgtx, false), nil
}

// GetSSHSummary - per-height txio counts up to a bound
//
// avoids materialising the txio sets of large histories
func (db *BlockDatabase) GetSSHSummary(scrAddr scripthistory.ScrAddr, endBlock uint32) (map[uint32]uint32, error) {

	summary := make(map[uint32]uint32)

	iter := db.NewIterator(schema.History)
	defer iter.Release()

	prefix := schema.PrefixSubSSH.Key(scrAddr[:])
	for ok := iter.SeekToStartsWith(prefix); ok; ok = iter.Advance() {
		if !iter.CheckKeyStartsWith(prefix) {
			break
		}
		sub, err := parseSubHistoryEntry(iter, scrAddr)
		if nil != err {
			return nil, err
		}
		if sub.Hgtx.Height() > endBlock {
			break
		}
		summary[sub.Hgtx.Height()] += uint32(len(sub.Txios))
	}
	return summary, nil
}

// AddRegisteredScript - track a script for fullnode scans
//
// scannedUpTo of ScannedUpToUnknown means brand new, no rescan
// needed; zero means scan from the beginning
func (db *BlockDatabase) AddRegisteredScript(rawScript []byte, scannedUpTo uint32) scripthistory.ScrAddr {
	scrAddr := scripthistory.FromScript(rawScript)
	if _, err := db.GetScriptHistorySummary(scrAddr); nil == err {
		return scrAddr // already registered
	}
	ssh := scripthistory.NewHistory(scrAddr)
	ssh.AlreadyScannedUpTo = scannedUpTo
	db.PutScriptHistorySummary(ssh)
	return scrAddr
}

// RegisteredScrAddrs - every script with a summary record
func (db *BlockDatabase) RegisteredScrAddrs() ([]scripthistory.ScrAddr, error) {
	var scrAddrs []scripthistory.ScrAddr

	iter := db.NewIterator(schema.History)
	defer iter.Release()

	for ok := iter.SeekToPrefix(schema.PrefixScript, nil); ok; ok = iter.AdvanceWithinPrefix(schema.PrefixScript) {
		key := iter.Key()
		scrAddr, err := scripthistory.ScrAddrFromBytes(key[1:])
		if nil != err {
			return nil, err
		}
		scrAddrs = append(scrAddrs, scrAddr)
	}
	return scrAddrs, nil
}

// GetBalanceForScrAddr - unspent total from the summary record
func (db *BlockDatabase) GetBalanceForScrAddr(scrAddr scripthistory.ScrAddr) (uint64, error) {
	ssh, err := db.GetScriptHistorySummary(scrAddr)
	if nil != err {
		return 0, err
	}
	return ssh.TotalUnspent, nil
}

// GetFullUTXOMapForSSH - every unspent output of one script
//
// walks the shards and keeps the received entries that no spent entry
// cancels, then drops those whose output record in the block store
// is marked spent; an entry with no output record is kept.  multisig
// entries are included only on request
func (db *BlockDatabase) GetFullUTXOMapForSSH(scrAddr scripthistory.ScrAddr, withMultisig bool) (map[schema.OutKey]uint64, error) {

	ssh, err := db.GetScriptHistory(scrAddr, 0, schema.MaxHeight)
	if nil != err {
		return nil, err
	}

	utxos := make(map[schema.OutKey]uint64)
	for _, sub := range ssh.OrderedShards() {
		for _, txio := range sub.Txios {
			switch txio.Kind {
			case scripthistory.TxioSpent:
				delete(utxos, txio.Key)
			case scripthistory.TxioMultisig:
				if withMultisig {
					utxos[txio.Key] = txio.Value
				}
			case scripthistory.TxioReceived, scripthistory.TxioFromSelf:
				utxos[txio.Key] = txio.Value
			}
		}
	}

	// consistency: drop anything the block store says is spent
	for key := range utxos {
		stxo, err := db.GetStoredTxOut(key)
		if nil != err {
			continue
		}
		if transactionrecord.SpentnessSpent == stxo.Spentness {
			delete(utxos, key)
		}
	}
	return utxos, nil
}
