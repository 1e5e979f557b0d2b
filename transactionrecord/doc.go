// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transactionrecord - transaction level database records
//
// A transaction slot holds either the complete raw transaction or a
// fragmented form whose outputs live in separate per-output records.
// Fragmented storage keeps output records individually addressable so
// spentness can be updated in place when a later block consumes them.
package transactionrecord
