// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package scripthistory - per-script transaction history records
//
// Every output script is reduced to a canonical 21-byte script
// address.  The history of one address is a small summary record plus
// one shard per (height, dup id) that touched it, so hot addresses
// never produce an unbounded single value and range scans deliver the
// shards already in height order.
package scripthistory
