// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package schema

// DBType - how much of the chain the database indexes
//
// the byte values are persisted inside the info record
type DBType byte

const (
	DBTypeBare     DBType = iota // raw block data only
	DBTypeLite                   // headers plus registered scripts
	DBTypePartial                // headers, tx by hash, registered scripts
	DBTypeFull                   // everything for registered scripts
	DBTypeSuper                  // everything for every script
	DBTypeWhatever               // caller does not care; first open decides
)

// String - printable db type
func (t DBType) String() string {
	switch t {
	case DBTypeBare:
		return "Bare"
	case DBTypeLite:
		return "Lite"
	case DBTypePartial:
		return "Partial"
	case DBTypeFull:
		return "Full"
	case DBTypeSuper:
		return "Super"
	case DBTypeWhatever:
		return "Whatever"
	default:
		return "Unknown"
	}
}

// PruneType - retention policy
//
// the schema admits pruning but only full retention is implemented
type PruneType byte

const (
	PruneAll      PruneType = iota // keep only unspent data
	PruneNone                      // keep everything
	PruneWhatever                  // caller does not care; first open decides
)

// String - printable prune type
func (t PruneType) String() string {
	switch t {
	case PruneAll:
		return "All"
	case PruneNone:
		return "None"
	case PruneWhatever:
		return "Whatever"
	default:
		return "Unknown"
	}
}

// Database - one of the logical sub-databases
type Database int

// the five logical sub-databases
const (
	Headers Database = iota
	BlkData
	History
	TxHints
	Spentness
	DatabaseCount // sentinel
)

// String - printable database selector
func (d Database) String() string {
	switch d {
	case Headers:
		return "headers"
	case BlkData:
		return "blocks"
	case History:
		return "history"
	case TxHints:
		return "txhints"
	case Spentness:
		return "spentness"
	default:
		return "unknown"
	}
}
