// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The grace-period engine.

package core

import (
	"runtime"

	"github.com/lihaol/prcu-go/internal/prcu/percpu"
)

// Synchronize waits until every reader that began its critical section
// before the call has finished, then publishes the callback-readiness
// version. It never fails and never returns without having waited.
//
// A grace period ends when every processor has acknowledged the writer's
// version, either voluntarily (outermost ReadUnlock, context switch) or
// prodded by a cross-processor poll, and the migrated-reader counter has
// drained to zero.
//
// Synchronize may block and must not be called from a read-side critical
// section.
func (s *State) Synchronize() {
	// Allocate the new grace-period version before taking the writer mutex:
	// concurrent writers each get a distinct version and their scans
	// overlap, so spread readers are collected in a timely fashion.
	v := s.gpv.Add(1)
	s.mtx.Lock()

	// Acknowledge our own processor up front. A goroutine may share its
	// home processor with a still-active reader (no scheduler guarantees
	// the reader was switched out and its count migrated), so the
	// self-stamp keeps the poll handler's condition.
	r, _ := s.cpus.Pin()
	if r.Locked() == 0 {
		r.AdvanceVersion(v)
	}
	s.cpus.Unpin(r)

	// Scan every processor and prod the stragglers. A processor that has
	// quiesced since its last reader (online == 0) already acknowledged via
	// report and is skipped.
	var stragglers []int
	for cpu := 0; cpu < s.cpus.Len(); cpu++ {
		rec := s.cpus.Record(cpu)
		if rec.Online() == 0 {
			continue
		}
		if rec.Version() < v {
			s.callAsync(cpu, s.pollQuiescent)
			stragglers = append(stragglers, cpu)
		}
	}

	// Wait for the stragglers to commit. The remote handler is a single
	// store, so a yielding spin is cheaper than parking here.
	for _, cpu := range stragglers {
		rec := s.cpus.Record(cpu)
		for rec.Version() < v {
			runtime.Gosched()
		}
	}

	// Wait for readers whose counts were migrated off-processor.
	if s.activeCtr.Load() > 0 {
		s.waitQ.Wait(func() bool { return s.activeCtr.Load() <= 0 })
	}

	// Publish callback readiness. A later-numbered writer may already have
	// finished, so advance rather than store: cbv never moves backwards.
	advance(&s.cbv, v)
	s.graces.Add(1)
	s.mtx.Unlock()
}

// pollQuiescent is the cross-processor poll handler. It runs pinned on the
// target processor and touches only that processor's record: if no reader is
// active there, the processor acknowledges the current grace-period version;
// otherwise the outermost ReadUnlock will report on exit and nothing is done
// here.
func (s *State) pollQuiescent(r *percpu.Record) {
	if r.Locked() == 0 {
		r.StoreVersion(s.gpv.Load())
	}
}

// callAsync runs fn pinned to processor cpu without waiting for it to
// complete, the asynchronous flavor of the host's cross-processor call.
func (s *State) callAsync(cpu int, fn func(*percpu.Record)) {
	go func() {
		r := s.cpus.PinTo(cpu)
		fn(r)
		s.cpus.Unpin(r)
	}()
}
