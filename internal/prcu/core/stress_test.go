// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Concurrency smoke tests with the real goroutine-id affinity. These do not
// assert scheduling order, only the protocol's end-state invariants.

package core

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lihaol/prcu-go/internal/prcu/cblist"
)

// TestGracePeriodExcludesPreexistingReaders is the classic reclamation
// check: a reader inside its critical section must never observe an item
// that a writer reclaimed after a grace period.
func TestGracePeriodExcludesPreexistingReaders(t *testing.T) {
	s := NewState(&Config{Procs: 4})
	defer s.Shutdown()

	type item struct{ reclaimed atomic.Bool }
	var cur atomic.Pointer[item]
	cur.Store(new(item))

	var violations atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for n := 0; ; n++ {
				select {
				case <-stop:
					return
				default:
				}
				s.ReadLock()
				it := cur.Load()
				if it.reclaimed.Load() {
					violations.Add(1)
				}
				if n%64 == 0 {
					// Exercise the migration path mid-section.
					s.NoteContextSwitch()
				}
				if it.reclaimed.Load() {
					violations.Add(1)
				}
				s.ReadUnlock()
				if n%128 == 0 {
					runtime.Gosched()
				}
			}
		}(i)
	}

	for i := 0; i < 100; i++ {
		old := cur.Swap(new(item))
		s.Synchronize()
		old.reclaimed.Store(true)
	}

	close(stop)
	wg.Wait()

	require.EqualValues(t, 0, violations.Load(), "reader observed a reclaimed item")
	require.EqualValues(t, 0, s.activeCtr.Load(), "migrated reader counter did not settle")
}

// TestStressMixedWorkload hammers readers, writers, and callback traffic
// concurrently, then drains with a barrier and checks the ledgers balance.
func TestStressMixedWorkload(t *testing.T) {
	s := NewState(&Config{Procs: 4})
	defer s.Shutdown()

	var invoked atomic.Int64
	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers.
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; ; n++ {
				select {
				case <-stop:
					return
				default:
				}
				s.ReadLock()
				if n%2 == 0 {
					s.ReadLock()
					s.ReadUnlock()
				}
				s.ReadUnlock()
				if n%32 == 0 {
					s.NoteContextSwitch()
				}
			}
		}()
	}

	// Writers.
	var writers sync.WaitGroup
	for i := 0; i < 2; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for n := 0; n < 25; n++ {
				s.Synchronize()
			}
		}()
	}

	// Callback traffic.
	var callers sync.WaitGroup
	const callbacksPerCaller = 100
	for i := 0; i < 2; i++ {
		callers.Add(1)
		go func() {
			defer callers.Done()
			for n := 0; n < callbacksPerCaller; n++ {
				s.Call(new(cblist.Callback), func(*cblist.Callback) { invoked.Add(1) })
			}
		}()
	}

	writers.Wait()
	callers.Wait()
	close(stop)
	wg.Wait()

	s.Barrier()

	require.EqualValues(t, 2*callbacksPerCaller, invoked.Load(), "callbacks lost or duplicated")
	require.Equal(t, s.queued.Load(), s.invoked.Load(), "queued/invoked ledgers diverge after barrier")
	require.EqualValues(t, 0, s.activeCtr.Load())
	require.LessOrEqual(t, s.cbv.Load(), s.gpv.Load())
}
