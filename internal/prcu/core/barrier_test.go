// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lihaol/prcu-go/internal/prcu/cblist"
)

// TestBarrierDrainsAllProcessors: with one pending callback on each of two
// processors, Barrier returns only after those two plus the two sentinels
// have fired.
func TestBarrierDrainsAllProcessors(t *testing.T) {
	s, bind := newTestState(2)
	bind(0)

	var fired [2]atomic.Bool
	s.Call(new(cblist.Callback), func(*cblist.Callback) { fired[0].Store(true) })

	queued := make(chan struct{})
	go func() {
		bind(1)
		s.Call(new(cblist.Callback), func(*cblist.Callback) { fired[1].Store(true) })
		close(queued)
	}()
	<-queued

	s.Barrier()

	require.True(t, fired[0].Load(), "processor 0 callback not invoked")
	require.True(t, fired[1].Load(), "processor 1 callback not invoked")
	require.EqualValues(t, 4, s.queued.Load(), "two callbacks plus two sentinels")
	require.EqualValues(t, 4, s.invoked.Load(), "barrier returned with callbacks outstanding")
}

// TestBarrierEmptyLists: a barrier with nothing queued still registers and
// fires one sentinel per processor and returns.
func TestBarrierEmptyLists(t *testing.T) {
	s, bind := newTestState(3)
	bind(0)

	s.Barrier()

	require.EqualValues(t, 3, s.queued.Load())
	require.EqualValues(t, 3, s.invoked.Load())
}

// TestBarrierMakesOwnProgress: no writer is active anywhere, no tick is
// running, and Barrier still completes (it runs its own grace period and
// kicks the dispatcher).
func TestBarrierMakesOwnProgress(t *testing.T) {
	s, bind := newTestState(2)
	bind(0)

	var fired atomic.Bool
	s.Call(new(cblist.Callback), func(*cblist.Callback) { fired.Store(true) })

	done := make(chan struct{})
	go func() {
		bind(0)
		s.Barrier()
		close(done)
	}()
	finished(t, done, "Barrier without an external writer")
	require.True(t, fired.Load())
}

// TestBarrierSerialized: concurrent barriers complete and each drains
// everything queued before it.
func TestBarrierSerialized(t *testing.T) {
	s, bind := newTestState(2)
	bind(0)

	var fired atomic.Int32
	for i := 0; i < 4; i++ {
		s.Call(new(cblist.Callback), func(*cblist.Callback) { fired.Add(1) })
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bind(0)
			s.Barrier()
		}()
	}
	wg.Wait()

	require.EqualValues(t, 4, fired.Load())
	require.Equal(t, s.queued.Load(), s.invoked.Load(), "queued and invoked counts diverge after barriers")
}

// TestBarrierSentinelReuse: the reserved sentinel record survives repeated
// barriers on the same processor.
func TestBarrierSentinelReuse(t *testing.T) {
	s, bind := newTestState(1)
	bind(0)

	for i := 0; i < 3; i++ {
		s.Barrier()
	}
	require.EqualValues(t, 3, s.invoked.Load())
}
