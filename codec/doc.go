// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codec - positioned binary reader and writer
//
// Serialisation of database records needs both byte orders: database
// keys hold big-endian integers so lexicographic order matches numeric
// order, while database values hold little-endian integers to match
// the on-wire serialisation.  The reader and writer here take the byte
// order per call so a record cannot accidentally inherit the wrong one.
package codec
