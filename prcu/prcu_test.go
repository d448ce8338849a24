// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prcu_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lihaol/prcu-go/prcu"
)

// TestPublicAPI exercises the process-wide instance end to end: readers,
// a writer, deferred callbacks, and a barrier.
func TestPublicAPI(t *testing.T) {
	prcu.Init(nil)
	prcu.Init(nil) // idempotent

	type box struct{ dead atomic.Bool }
	var cur atomic.Pointer[box]
	cur.Store(new(box))

	stop := make(chan struct{})
	var violations atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				prcu.ReadLock()
				b := cur.Load()
				if b.dead.Load() {
					violations.Add(1)
				}
				// The box must stay live for the whole section.
				if b.dead.Load() {
					violations.Add(1)
				}
				prcu.ReadUnlock()
			}
		}()
	}

	var freed atomic.Int64
	for i := 0; i < 20; i++ {
		old := cur.Swap(new(box))
		prcu.Call(new(prcu.Callback), func(*prcu.Callback) {
			old.dead.Store(true)
			freed.Add(1)
		})
		prcu.Synchronize()
	}

	prcu.Barrier()
	close(stop)
	wg.Wait()

	require.EqualValues(t, 20, freed.Load(), "deferred reclamations lost")
	require.EqualValues(t, 0, violations.Load(), "reader observed reclaimed state")

	st := prcu.Stats()
	require.GreaterOrEqual(t, st.GracePeriodVersion, st.CallbackVersion)
	require.Equal(t, st.CallbacksQueued, st.CallbacksInvoked, "barrier left callbacks queued")
}

// TestGetInfo sanity-checks the runtime info surface.
func TestGetInfo(t *testing.T) {
	info := prcu.GetInfo()
	require.Equal(t, prcu.Version, info.Version)
	require.NotEmpty(t, info.Algorithm)
	require.Greater(t, info.Procs, 0)
}
