// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prcu provides a Pure-Go PRCU runtime: an RCU-style grace-period
// primitive for read-mostly data.
//
// PRCU gives writers the classic RCU contract (wait until every reader that
// began before a chosen instant has finished, or defer cleanup callbacks to
// run after that point) while keeping readers nearly free. It is based on a
// fast consensus protocol that piggybacks on context switches, so the
// read-side fast path is two operations on processor-local state with no
// global atomics.
//
// # Quick Start
//
//	package main
//
//	import (
//		"sync/atomic"
//
//		"github.com/lihaol/prcu-go/prcu"
//	)
//
//	var config atomic.Pointer[Config]
//
//	func reader() *Config {
//		prcu.ReadLock()
//		defer prcu.ReadUnlock()
//		return config.Load() // safe to dereference until ReadUnlock
//	}
//
//	func update(next *Config) {
//		old := config.Swap(next)
//		prcu.Synchronize() // every reader that could see old has finished
//		recycle(old)
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Initialization: [Init]
//   - Read-side critical sections: [ReadLock], [ReadUnlock]
//   - Grace periods: [Synchronize]
//   - Deferred callbacks: [Call], [Barrier]
//   - Host integration: [NoteContextSwitch], [CheckCallbacks]
//   - Introspection: [Stats], [GetInfo]
//
// # How It Works
//
// The runtime keeps a record per logical processor (reader nesting depth,
// online flag, acknowledged version, callback list) and two global monotonic
// versions: the grace-period version, bumped once per writer, and the
// callback version, published when a writer finishes waiting. A writer scans
// all processors, prods stragglers with a cross-processor poll, waits for
// readers that migrated off their processor mid-section, and then publishes
// the callback version. A callback stamped with version v runs once the
// callback version exceeds v.
//
// # Performance Characteristics
//
//	Read side:   two processor-local operations, no global atomics
//	Write side:  one atomic increment plus a bounded scan of all processors
//	Callbacks:   batched, dispatched by a periodic tick per processor
//
// Writers are not wait-free with respect to readers: a grace period lasts at
// least as long as the longest concurrent read-side section.
//
// # Links
//
// Fast Consensus Using Bounded Staleness for Scalable Read-mostly
// Synchronization. Haibo Chen, Heng Zhang, Ran Liu, Binyu Zang, and Haibing
// Guan. IEEE TPDS 2016:
// https://dl.acm.org/citation.cfm?id=3024114.3024143
package prcu
