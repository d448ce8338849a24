// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prcu provides the public API for the Pure-Go PRCU runtime.
//
// See doc.go for detailed documentation and examples.
package prcu

import (
	"github.com/lihaol/prcu-go/internal/prcu/cblist"
	internal "github.com/lihaol/prcu-go/internal/prcu/core"
)

// Callback is a caller-owned deferred-callback record, registered with Call
// and handed back to its function after a grace period. The zero value is
// ready to use.
type Callback = cblist.Callback

// Func is a deferred callback function.
type Func = cblist.Func

// Config configures the process-wide PRCU instance. See Init.
type Config = internal.Config

// Snapshot is a point-in-time view of the runtime's counters. See Stats.
type Snapshot = internal.Snapshot

// Init installs the process-wide PRCU instance.
//
// Call it once at program start, before any other operation:
//
//	func main() {
//		prcu.Init(nil)
//		// ... rest of program
//	}
//
// A nil config selects defaults: one logical processor per GOMAXPROCS and a
// built-in dispatcher tick. Init is safe to call multiple times (subsequent
// calls are no-ops), and any operation called first initializes with
// defaults.
func Init(cfg *Config) {
	internal.Init(cfg)
}

// ReadLock marks the beginning of a read-side critical section.
//
// Read-side sections are cheap (two operations on the current processor's
// own state) and may nest arbitrarily. Code between ReadLock and ReadUnlock
// must not block.
func ReadLock() {
	internal.Default().ReadLock()
}

// ReadUnlock marks the end of a read-side critical section.
//
// The outermost unlock publishes the processor's quiescent state; if the
// section's count was migrated by a context switch, the unlock instead
// settles the global migrated-reader counter and wakes any waiting writer.
func ReadUnlock() {
	internal.Default().ReadUnlock()
}

// Synchronize waits until every reader that began its critical section
// before the call has finished.
//
// On return, all memory effects of those read-side sections are visible, and
// callbacks stamped before the call have become eligible for dispatch.
// Synchronize blocks and must not be called from a read-side section.
func Synchronize() {
	internal.Default().Synchronize()
}

// Call enqueues cb to be invoked with fn(cb) after a grace period ending no
// earlier than the next Synchronize completion.
//
// cb is caller-owned storage; PRCU owns it from Call until fn runs. fn may
// free cb, reuse it, or re-register it with another Call.
func Call(cb *Callback, fn Func) {
	internal.Default().Call(cb, fn)
}

// Barrier returns once every callback enqueued before the call has been
// invoked. It runs a grace period internally, so it makes progress even when
// no writer is active.
func Barrier() {
	internal.Default().Barrier()
}

// NoteContextSwitch informs PRCU that the current task is about to leave its
// processor. Hosts embedding PRCU under their own scheduler call this
// immediately before switching a task out; it migrates any in-flight reader
// count to the global counter and marks the processor quiescent-capable.
func NoteContextSwitch() {
	internal.Default().NoteContextSwitch()
}

// CheckCallbacks checks whether the current processor has callbacks ready to
// invoke and, if so, schedules their deferred dispatch.
//
// With the built-in tick enabled (the default) this happens automatically;
// hosts that disable the tick call this from their own periodic entry.
func CheckCallbacks() {
	internal.Default().CheckCallbacks()
}

// Stats returns a snapshot of the runtime's version and callback counters.
func Stats() Snapshot {
	return internal.Default().Stats()
}
