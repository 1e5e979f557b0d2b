// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package schema - the binary key layout of the block database
//
// Every key is one prefix byte followed by the big-endian fields of a
// composite coordinate, so that a raw lexicographic scan of a prefix
// walks records in their natural order:
//
//	height → dup id → tx index → txout index
//
// Values embed key fragments unchanged, i.e. still big-endian, while
// every other integer in a value is little-endian.  Any change to the
// constants in this package is a format break and needs a database
// reset or migration.
package schema
