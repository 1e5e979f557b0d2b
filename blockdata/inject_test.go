// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdata

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// many notifies with no intervening run coalesce into one run that
// satisfies every waiter
func TestNotifyCoalescing(t *testing.T) {
	inj := NewInject()

	const waiters = 8
	var runs atomic.Uint32

	// worker: wait for work, run once, acknowledge everything
	stop := make(chan struct{})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for {
			pending, alive := inj.awaitNotify(stop, time.Millisecond)
			if !alive {
				return
			}
			runs.Add(1)
			time.Sleep(20 * time.Millisecond) // let all notifies land
			inj.markRunComplete(pending)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < waiters; i += 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inj.Notify()
			kind := inj.WaitRun()
			assert.Equal(t, FailureNone, kind)
		}()
	}
	wg.Wait()

	close(stop)
	<-workerDone

	// all waiters were satisfied by very few runs, not one each
	assert.LessOrEqual(t, runs.Load(), uint32(3))
	assert.GreaterOrEqual(t, runs.Load(), uint32(1))
}

func TestWaitRunAfterCompletedRun(t *testing.T) {
	inj := NewInject()

	inj.Notify()
	pending, alive := inj.awaitNotify(make(chan struct{}), time.Millisecond)
	require.True(t, alive)
	inj.markRunComplete(pending)

	// the covering run already happened: no blocking
	done := make(chan FailureKind, 1)
	go func() { done <- inj.WaitRun() }()
	select {
	case kind := <-done:
		assert.Equal(t, FailureNone, kind)
	case <-time.After(time.Second):
		t.Fatal("WaitRun blocked after a completed run")
	}
}

// the failure flag is sticky and releases waiters immediately
func TestFailureFlag(t *testing.T) {
	inj := NewInject()

	inj.Notify()
	inj.SetFailureFlag(FailureCorrupt)

	kind := inj.WaitRun()
	assert.Equal(t, FailureCorrupt, kind)

	// later failures do not overwrite the first
	inj.SetFailureFlag(FailureIO)
	failed, kind := inj.Failed()
	assert.True(t, failed)
	assert.Equal(t, FailureCorrupt, kind)

	// new notifies return immediately too
	inj.Notify()
	assert.Equal(t, FailureCorrupt, inj.WaitRun())
}

func TestWaitTimeout(t *testing.T) {
	inj := NewInject()

	start := time.Now()
	inj.Wait(30 * time.Millisecond)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)

	// an early notify releases the wait before the timeout
	go func() {
		time.Sleep(10 * time.Millisecond)
		inj.Notify()
	}()
	start = time.Now()
	inj.Wait(5 * time.Second)
	assert.Less(t, time.Since(start), time.Second)
}
