// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain - recognised networks and their fixed parameters
package chain

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blockvault/blockvaultd/fault"
)

// names of all chains
const (
	Main    = "Main"
	Test    = "Test"
	Regtest = "Regtest"
)

// Parameters - the constants that select a network
type Parameters struct {
	Name             string
	Magic            wire.BitcoinNet
	GenesisBlockHash chainhash.Hash
	GenesisTxHash    chainhash.Hash
}

// Valid - validate a chain name
func Valid(name string) bool {
	switch name {
	case Main, Test, Regtest:
		return true
	default:
		return false
	}
}

// Select - the parameters for a named chain
//
// unknown names are rejected here so a database can never be opened
// with unset genesis constants
func Select(name string) (*Parameters, error) {
	var params *chaincfg.Params
	switch name {
	case Main:
		params = &chaincfg.MainNetParams
	case Test:
		params = &chaincfg.TestNet3Params
	case Regtest:
		params = &chaincfg.RegressionNetParams
	default:
		return nil, fault.ErrInvalidChain
	}

	return &Parameters{
		Name:             name,
		Magic:            params.Net,
		GenesisBlockHash: *params.GenesisHash,
		GenesisTxHash:    params.GenesisBlock.Header.MerkleRoot,
	}, nil
}

// MagicBytes - the network magic in wire order
func (p *Parameters) MagicBytes() [4]byte {
	var b [4]byte
	b[0] = byte(p.Magic)
	b[1] = byte(p.Magic >> 8)
	b[2] = byte(p.Magic >> 16)
	b[3] = byte(p.Magic >> 24)
	return b
}

// GenesisBlock - the raw genesis block for a named chain
func (p *Parameters) GenesisBlock() *wire.MsgBlock {
	switch p.Name {
	case Test:
		return chaincfg.TestNet3Params.GenesisBlock
	case Regtest:
		return chaincfg.RegressionNetParams.GenesisBlock
	default:
		return chaincfg.MainNetParams.GenesisBlock
	}
}
