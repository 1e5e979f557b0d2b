// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockrecord - block level database records
//
// The stored forms of headers, the per-height header list, the
// per-database info record and the per-block undo record.  Parse is
// the inverse of Serialise for every record in this package, except
// for fields that live in the record's key rather than its value: the
// height of a HeadHgtList and the height and dup id of an UndoData are
// not serialised and are set by the caller before Parse.
package blockrecord
