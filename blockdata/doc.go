// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockdata - the background indexer
//
// One worker goroutine owns every write batch.  External actors wake
// it through an Inject rendezvous; wake-ups coalesce, so any number
// of notifies before the worker runs are satisfied by one run.  The
// worker drives a state machine through initialisation, header scan,
// block scan and history build, then sleeps on the rendezvous and
// applies new work as it is announced.  Failures are sticky: once
// the failure flag is set the state machine stops advancing and
// every waiter returns immediately.
package blockdata
