// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Callback enqueue, readiness check, and deferred dispatch.

package core

import (
	"github.com/lihaol/prcu-go/internal/prcu/cblist"
	"github.com/lihaol/prcu-go/internal/prcu/percpu"
)

// Call enqueues cb on the current processor for invocation after a grace
// period ending no earlier than the next Synchronize completion.
//
// The callback is stamped with the grace-period version current at enqueue
// time. Since both versions only grow, a published callback version larger
// than the stamp implies a grace period allocated after this enqueue has
// completed. Stamping with the processor's possibly-stale local version
// would let a grace period that began before the enqueue release the
// callback early.
//
// cb is caller-owned storage; PRCU owns it until fn runs.
func (s *State) Call(cb *cblist.Callback, fn cblist.Func) {
	r, _ := s.cpus.Pin()
	r.List().Enqueue(cb, fn, s.gpv.Load())
	s.cpus.Unpin(r)
	s.queued.Add(1)
}

// pending reports whether r has callbacks ready to invoke.
// Caller must hold r's pin.
func (s *State) pending(r *percpu.Record) bool {
	return r.CBVersion() < s.cbv.Load() && r.List().Len() > 0
}

// CheckCallbacks is the host's periodic tick entry for the calling
// goroutine's processor: if callbacks are ready there, a deferred drain is
// scheduled.
func (s *State) CheckCallbacks() {
	r, cpu := s.cpus.Pin()
	ready := s.pending(r)
	s.cpus.Unpin(r)
	if ready {
		s.scheduleDrain(cpu)
	}
}

// checkAll sweeps every processor. Driven by the built-in tick.
func (s *State) checkAll() {
	for cpu := 0; cpu < s.cpus.Len(); cpu++ {
		r := s.cpus.PinTo(cpu)
		ready := s.pending(r)
		s.cpus.Unpin(r)
		if ready {
			s.scheduleDrain(cpu)
		}
	}
}

// scheduleDrain starts a deferred drain for processor cpu unless one is
// already in flight.
func (s *State) scheduleDrain(cpu int) {
	if !s.cpus.Record(cpu).TrySchedule() {
		return
	}
	go s.processCallbacks(cpu)
}

// processCallbacks drains the callbacks on processor cpu whose stamps are
// older than the callback version, then records that version locally.
//
// The callback version is snapshotted before the drain: a callback enqueued
// while draining carries a stamp no smaller than that snapshot and waits for
// the next round, bounding each round to the callbacks observable at its
// start and keeping dispatch latency predictable.
//
// Eligible callbacks are collected while pinned and invoked after unpinning,
// so a callback may itself call Call, ReadLock, or Synchronize.
func (s *State) processCallbacks(cpu int) {
	r := s.cpus.PinTo(cpu)
	// Clear the scheduled mark before the snapshot so a readiness check
	// racing with this drain schedules a fresh round rather than being
	// absorbed into a stale one.
	r.ClearScheduled()

	cbv := s.cbv.Load()
	var ready []*cblist.Callback
	for {
		ver, ok := r.List().HeadVersion()
		if !ok || ver >= cbv {
			break
		}
		cb, cbVer, ok := r.List().Dequeue()
		if !ok {
			break
		}
		if checksEnabled && cbVer != ver {
			warnf("callback stamp changed under drain: head %d, dequeued %d", ver, cbVer)
		}
		ready = append(ready, cb)
	}
	r.SetCBVersion(cbv)
	s.cpus.Unpin(r)

	for _, cb := range ready {
		// Count before invoking: a barrier completes inside its sentinel's
		// invocation, and the ledger must already balance when it returns.
		s.invoked.Add(1)
		cb.Invoke()
	}
}
