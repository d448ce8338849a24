// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Read-side fast paths and the context-switch hook.

package core

import "github.com/lihaol/prcu-go/internal/prcu/percpu"

// ReadLock marks the beginning of a read-side critical section.
//
// A processor's quiescent state is when both its reader depth and its online
// flag are zero. The fast path is two operations on the processor's own
// cache line: a conditional online store and the depth increment. No global
// state is touched.
//
// Read-side sections may nest arbitrarily and must not block between
// ReadLock and ReadUnlock.
func (s *State) ReadLock() {
	r, _ := s.cpus.Pin()
	if r.Online() == 0 {
		// The sequentially consistent store pairs with the writer's
		// version fetch-add: the scan sees either online == 1 or a
		// quiescent state reached after this section ended.
		r.SetOnline(1)
	}
	r.IncLocked()
	s.cpus.Unpin(r)
}

// ReadUnlock marks the end of a read-side critical section.
//
// If the section's count was migrated to the global counter by a context
// switch, the unlock lands on a processor with a zero depth; it then
// decrements the global counter and, on reaching zero, wakes any writer
// blocked in Synchronize.
func (s *State) ReadUnlock() {
	r, _ := s.cpus.Pin()
	locked := r.Locked()
	if locked != 0 {
		r.DecLocked()
		// Only the outermost unlock publishes a quiescent state.
		if locked == 1 {
			s.report(r)
		}
		s.cpus.Unpin(r)
		return
	}
	s.cpus.Unpin(r)
	n := s.activeCtr.Add(-1)
	if n == 0 {
		s.waitQ.Wake()
	} else if n < 0 && checksEnabled {
		warnf("active reader counter underflow (%d): ReadUnlock without ReadLock", n)
	}
}

// report advances the processor's acknowledged version toward the current
// grace-period version. A failed compare-and-swap means another party
// advanced it first; monotonicity is preserved either way.
//
// Caller must hold r's pin.
func (s *State) report(r *percpu.Record) {
	gv := s.gpv.Load()
	lv := r.Version()
	if gv > lv {
		r.CasVersion(lv, gv)
	}
}

// NoteContextSwitch updates PRCU state when the current task is about to
// leave its processor.
//
// A reader that migrates would otherwise keep the writer from ever observing
// a quiescent state on this processor: the local depth is folded into the
// global migrated-reader counter so the writer can block on it instead, and
// the online flag is cleared so the writer's scan skips this processor.
func (s *State) NoteContextSwitch() {
	r, _ := s.cpus.Pin()
	if n := r.Locked(); n != 0 {
		s.activeCtr.Add(int64(n))
		r.ClearLocked()
	}
	r.SetOnline(0)
	s.report(r)
	s.cpus.Unpin(r)
}
