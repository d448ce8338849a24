// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package percpu provides the per-processor state records for the PRCU runtime.
//
// The kernel prototype kept this state in per-CPU variables with hardware
// cache-line alignment, accessed under preemption-disable. The Go rendition
// materializes it as a fixed Table of cache-line padded Records indexed by a
// logical processor id, with a per-record spin lock standing in for
// preemption disable: Pin returns a Record reference that is valid, and whose
// non-atomic fields may be touched, only until the matching Unpin.
//
// A goroutine's home processor is derived from its goroutine id, so a single
// read-side critical section always resolves to the same Record. The mapping
// is replaceable via SetAffinity, which is the host's scheduling hook and the
// determinism hook for protocol tests.
//
// Remote parties (the grace-period scan) read the atomic fields of a Record
// without pinning it; sync/atomic's sequentially consistent ordering stands
// in for the explicit fences of the original.
package percpu

import (
	"runtime"
	"sync/atomic"

	"github.com/lihaol/prcu-go/internal/prcu/cblist"
)

const (
	// cacheLineSize keeps neighboring records off each other's cache line.
	// 64 bytes covers amd64 and arm64.
	cacheLineSize = 64

	// stampPoolSize is the number of version stamps pre-allocated per
	// processor so the enqueue path starts allocation-free.
	stampPoolSize = 16
)

// Record is the PRCU state of one logical processor.
//
// Field access rules:
//   - pin, online, version, cbVersion, sched: atomic, readable remotely.
//   - locked, cblist, barrierHead: owner-only, caller must hold the pin.
type Record struct {
	// pin is the slot spin lock. Held while "running on" this processor.
	pin atomic.Uint32

	// locked is the reader nesting depth of the task currently on this
	// processor. Guarded by pin.
	locked uint32

	// online is 1 if a reader has touched this processor since the last
	// context switch, 0 once it has voluntarily quiesced.
	online atomic.Uint32

	// version is the largest grace-period version this processor has
	// acknowledged. Mutated only while pinned; read remotely by the scan.
	version atomic.Uint64

	// cbVersion is the largest callback version for which this processor
	// has dispatched all eligible callbacks. Written only while pinned.
	cbVersion atomic.Uint64

	// sched is set while a deferred callback drain is scheduled or running,
	// so at most one drain is in flight per processor.
	sched atomic.Uint32

	// cblist holds the pending callbacks. Guarded by pin.
	cblist cblist.List

	// barrierHead is the pre-allocated callback reserved for the barrier
	// sentinel. Guarded by the barrier mutex and pin.
	barrierHead cblist.Callback

	_ [cacheLineSize]byte
}

// Locked returns the reader nesting depth. Caller must hold the pin.
func (r *Record) Locked() uint32 { return r.locked }

// IncLocked increments the reader nesting depth. Caller must hold the pin.
func (r *Record) IncLocked() { r.locked++ }

// DecLocked decrements the reader nesting depth. Caller must hold the pin.
func (r *Record) DecLocked() { r.locked-- }

// ClearLocked zeroes the reader nesting depth. Caller must hold the pin.
func (r *Record) ClearLocked() { r.locked = 0 }

// Online reports the online flag.
func (r *Record) Online() uint32 { return r.online.Load() }

// SetOnline stores the online flag. The sequentially consistent store pairs
// with the grace-period scan's load, replacing the original's smp_mb.
func (r *Record) SetOnline(v uint32) { r.online.Store(v) }

// Version returns the acknowledged grace-period version.
func (r *Record) Version() uint64 { return r.version.Load() }

// CasVersion attempts to advance version from old to new.
// Failure is harmless: another party advanced it first.
func (r *Record) CasVersion(old, new uint64) bool {
	return r.version.CompareAndSwap(old, new)
}

// StoreVersion publishes an acknowledged grace-period version. Caller must
// hold the pin and must not move the version backwards.
func (r *Record) StoreVersion(v uint64) { r.version.Store(v) }

// AdvanceVersion moves version up to v if v is larger, never backwards.
func (r *Record) AdvanceVersion(v uint64) {
	for {
		cur := r.version.Load()
		if cur >= v || r.version.CompareAndSwap(cur, v) {
			return
		}
	}
}

// CBVersion returns the dispatched-callback version.
func (r *Record) CBVersion() uint64 { return r.cbVersion.Load() }

// SetCBVersion records the dispatched-callback version. Caller must hold the
// pin.
func (r *Record) SetCBVersion(v uint64) { r.cbVersion.Store(v) }

// TrySchedule marks a callback drain as scheduled. It returns false if one
// is already in flight.
func (r *Record) TrySchedule() bool { return r.sched.CompareAndSwap(0, 1) }

// ClearScheduled clears the drain-scheduled mark.
func (r *Record) ClearScheduled() { r.sched.Store(0) }

// List returns the callback list. Caller must hold the pin.
func (r *Record) List() *cblist.List { return &r.cblist }

// BarrierHead returns the reserved barrier sentinel record.
func (r *Record) BarrierHead() *cblist.Callback { return &r.barrierHead }

// Table is the fixed set of logical processors.
type Table struct {
	recs     []Record
	affinity func() int
}

// NewTable creates a table of n processors with initialized callback lists.
func NewTable(n int) *Table {
	if n < 1 {
		n = 1
	}
	t := &Table{recs: make([]Record, n)}
	for i := range t.recs {
		t.recs[i].cblist.Init()
		t.recs[i].cblist.Prefill(stampPoolSize)
	}
	t.affinity = func() int {
		return int(GoroutineID() % int64(len(t.recs)))
	}
	return t
}

// Len returns the number of processors.
func (t *Table) Len() int { return len(t.recs) }

// Record returns processor cpu's record without pinning it. Only the atomic
// fields of the result may be accessed.
func (t *Table) Record(cpu int) *Record { return &t.recs[cpu] }

// SetAffinity replaces the goroutine-to-processor mapping. Must be called
// before the table is in use.
func (t *Table) SetAffinity(fn func() int) { t.affinity = fn }

// Pin locks the current goroutine's home processor and returns its record
// and id. The record's non-atomic fields may be used until Unpin.
func (t *Table) Pin() (*Record, int) {
	cpu := t.affinity()
	r := &t.recs[cpu]
	t.lock(r)
	return r, cpu
}

// PinTo locks a specific processor, as if running on it. This is the
// cross-processor call primitive: the handler body executes between PinTo
// and Unpin.
func (t *Table) PinTo(cpu int) *Record {
	r := &t.recs[cpu]
	t.lock(r)
	return r
}

// Unpin releases a record obtained from Pin or PinTo.
func (t *Table) Unpin(r *Record) {
	r.pin.Store(0)
}

// lock spins until the record's pin is acquired. Pin windows are short (the
// lock is never held across a blocking operation), so a yielding spin is
// cheaper than parking.
func (t *Table) lock(r *Record) {
	for !r.pin.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}
