// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"runtime"
	"testing"

	"github.com/lihaol/prcu-go/internal/prcu/cblist"
)

// BenchmarkReadLockUnlock measures the read-side fast path under
// contention from sibling goroutines.
func BenchmarkReadLockUnlock(b *testing.B) {
	s := NewState(&Config{Procs: runtime.GOMAXPROCS(0), DisableTick: true})
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s.ReadLock()
			s.ReadUnlock()
		}
	})
}

// BenchmarkReadLockUnlockNested measures a depth-2 nested section.
func BenchmarkReadLockUnlockNested(b *testing.B) {
	s := NewState(&Config{Procs: runtime.GOMAXPROCS(0), DisableTick: true})
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s.ReadLock()
			s.ReadLock()
			s.ReadUnlock()
			s.ReadUnlock()
		}
	})
}

// BenchmarkSynchronizeIdle measures writer latency with no readers.
func BenchmarkSynchronizeIdle(b *testing.B) {
	s := NewState(&Config{Procs: runtime.GOMAXPROCS(0), DisableTick: true})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Synchronize()
	}
}

// BenchmarkCallEnqueue measures the callback enqueue path. Nothing is
// dequeued, so only the first enqueues hit the prefilled stamp pool; the
// rest allocate their stamps.
func BenchmarkCallEnqueue(b *testing.B) {
	s := NewState(&Config{Procs: 1, DisableTick: true})
	fn := func(*cblist.Callback) {}
	cbs := make([]cblist.Callback, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Call(&cbs[i], fn)
	}
}

// BenchmarkBarrier measures a full enqueue-synchronize-drain cycle.
func BenchmarkBarrier(b *testing.B) {
	s := NewState(&Config{Procs: runtime.GOMAXPROCS(0), DisableTick: true})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Barrier()
	}
}
