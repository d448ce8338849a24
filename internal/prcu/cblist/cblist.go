// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cblist implements the per-processor callback list for the PRCU runtime.
//
// The list is an unsegmented singly-linked FIFO of caller-owned Callback
// records, paired with a second FIFO of version stamps allocated by the list
// itself. Every enqueue appends one record to each list; every dequeue removes
// the head of each. The pairing exists because a Callback is caller-owned
// storage (the rcu_head contract) and cannot grow a version field without
// burdening every caller.
//
// Invariants:
//   - Both lists always have the same length, equal to Len().
//   - Version stamps are non-decreasing from head to tail.
//   - When the list is empty, both tail pointers refer back to their heads.
//
// Version stamps are recycled through a per-list free list so that the
// enqueue path is allocation-free in the common case. The free list is
// stocked by Prefill and refilled by Dequeue.
//
// A List is not self-synchronized: it lives inside a per-processor record and
// every access happens while the owning processor is pinned.
package cblist

// Func is a deferred callback function. It receives the Callback record it
// was registered with, which it may free or reuse.
type Func func(*Callback)

// Callback is a single deferred-callback record.
//
// Storage is owned by the caller of Enqueue until the callback is invoked,
// at which point ownership returns to the callback function itself. The
// zero value is ready to use.
type Callback struct {
	next *Callback
	fn   Func
}

// Invoke runs the registered function, handing the record back to it.
func (cb *Callback) Invoke() {
	cb.fn(cb)
}

// versionHead carries the grace-period version a callback was enqueued
// under. Allocated by the list at enqueue time, recycled at dequeue time.
type versionHead struct {
	version uint64
	next    *versionHead
}

// List is the paired callback/version FIFO.
type List struct {
	head  *Callback
	tail  **Callback
	vhead *versionHead
	vtail **versionHead
	n     int

	// free holds recycled version stamps. Stamps never leave the list, so
	// the pool needs no synchronization beyond the owner's pin.
	free *versionHead
}

// Init resets the list to empty. Must be called before first use.
func (l *List) Init() {
	l.head = nil
	l.tail = &l.head
	l.vhead = nil
	l.vtail = &l.vhead
	l.n = 0
}

// Prefill stocks the stamp free list with n records so the first n enqueues
// allocate nothing.
func (l *List) Prefill(n int) {
	for i := 0; i < n; i++ {
		l.free = &versionHead{next: l.free}
	}
}

// Len returns the number of queued callbacks.
func (l *List) Len() int {
	return l.n
}

// Enqueue appends cb with the given function and version stamp.
//
// The version must be no smaller than the version of the current tail;
// callers satisfy this by stamping with the global grace-period version,
// which only grows.
func (l *List) Enqueue(cb *Callback, fn Func, version uint64) {
	vhp := l.free
	if vhp != nil {
		l.free = vhp.next
	} else {
		vhp = new(versionHead)
	}
	cb.fn = fn
	cb.next = nil
	vhp.version = version
	vhp.next = nil

	l.n++
	*l.tail = cb
	l.tail = &cb.next
	*l.vtail = vhp
	l.vtail = &vhp.next
}

// HeadVersion returns the version stamp of the oldest callback. ok is false
// when the list is empty.
func (l *List) HeadVersion() (version uint64, ok bool) {
	if l.vhead == nil {
		return 0, false
	}
	return l.vhead.version, true
}

// Dequeue removes and returns the oldest callback together with its version
// stamp. ok is false when the list is empty.
//
// The stamp record is recycled into the free list before returning; only the
// version value escapes.
func (l *List) Dequeue() (cb *Callback, version uint64, ok bool) {
	cb = l.head
	if cb == nil {
		// Empty list: the stamp list and the length must agree.
		if l.vhead != nil || l.n != 0 {
			panic("cblist: version list out of sync with empty callback list")
		}
		return nil, 0, false
	}

	vhp := l.vhead
	if vhp == nil {
		panic("cblist: callback queued without a version stamp")
	}
	version = vhp.version
	l.vhead = vhp.next
	l.head = cb.next
	l.n--

	if l.head == nil {
		l.tail = &l.head
		l.vtail = &l.vhead
	}

	// Recycle the stamp.
	vhp.next = l.free
	l.free = vhp

	return cb, version, true
}
