// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - the multiplexed block database
//
// Five logical sub-databases are routed onto embedded key-value
// stores.  In fullnode layout headers, blocks, history and txhints
// each get their own store and spentness shares the block store; in
// supernode layout only headers stays separate and everything else is
// folded into the block store.
//
// Writes are single-threaded by contract: the indexer owns every
// batch.  Batches nest, only the outermost commit writes, and every
// begin must be matched by exactly one commit or abort.  Readers use
// iterators, which snapshot the last committed state for their whole
// lifetime.
package storage
