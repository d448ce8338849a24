// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The callback barrier.

package core

import (
	"github.com/lihaol/prcu-go/internal/prcu/cblist"
	"github.com/lihaol/prcu-go/internal/prcu/waitq"
)

// Barrier returns once every callback enqueued before the call has been
// invoked.
//
// It registers a sentinel callback on every processor using the reserved
// per-processor record; each processor's FIFO guarantees the sentinel runs
// after all earlier callbacks there. The registration cross-call is
// synchronous so that every sentinel is counted before the initial count is
// removed; the count starts at one so a short grace period cannot complete
// the barrier mid-registration.
//
// Barrier runs one grace period internally and kicks the dispatcher on
// every processor, so it makes progress on its own rather than depending on
// some other task running Synchronize to advance the callback version.
func (s *State) Barrier() {
	s.barrierMtx.Lock()

	done := waitq.NewCompletion()
	s.barrierDone = done
	s.barrierCPUCount.Store(1)

	for cpu := 0; cpu < s.cpus.Len(); cpu++ {
		r := s.cpus.PinTo(cpu)
		s.barrierCPUCount.Add(1)
		r.List().Enqueue(r.BarrierHead(), s.barrierCallback, s.gpv.Load())
		s.cpus.Unpin(r)
		s.queued.Add(1)
	}

	// Remove the initial count now that every sentinel is registered.
	if s.barrierCPUCount.Add(-1) == 0 {
		done.Complete()
	}

	// Make the sentinels eligible and get them dispatched.
	s.Synchronize()
	for cpu := 0; cpu < s.cpus.Len(); cpu++ {
		s.scheduleDrain(cpu)
	}

	done.Wait()
	s.barrierMtx.Unlock()
}

// barrierCallback is the sentinel function. The last sentinel to fire
// completes the barrier.
func (s *State) barrierCallback(*cblist.Callback) {
	if s.barrierCPUCount.Add(-1) == 0 {
		s.barrierDone.Complete()
	}
}
