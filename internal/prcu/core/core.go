// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package core implements the PRCU grace-period and callback protocol.
//
// PRCU is a read-mostly synchronization primitive built on a fast consensus
// protocol that piggybacks on context switches: readers pay two local memory
// operations on the fast path, while writers drive every processor through a
// quiescent state and then publish a callback-readiness version.
//
// Two monotonic 64-bit versions govern the protocol:
//   - the grace-period version (gpv), bumped once per writer, and
//   - the callback version (cbv), which lags gpv and equals the grace-period
//     version at which the most recent writer finished waiting.
//
// A callback stamped with version v is safe to invoke once cbv > v.
// Invariant: cbv <= gpv at all times; both only grow.
package core

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lihaol/prcu-go/internal/prcu/percpu"
	"github.com/lihaol/prcu-go/internal/prcu/waitq"
)

// defaultTickInterval paces the built-in dispatcher tick. It stands in for
// the scheduling-clock interrupt that drives callback processing in the
// kernel prototype.
const defaultTickInterval = time.Millisecond

// checksEnabled turns on debug invariant checking, in the spirit of the
// kernel's WARN_ON. Enabled with PRCU_CHECKS=1 (any non-empty value).
var checksEnabled = os.Getenv("PRCU_CHECKS") != ""

// warnf raises a debug diagnostic. Never called on the reader fast path.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "prcu: WARNING: "+format+"\n", args...)
}

// Config configures a PRCU instance. The zero value (or a nil pointer)
// selects defaults.
type Config struct {
	// Procs is the number of logical processors to maintain state for.
	// Defaults to runtime.GOMAXPROCS(0).
	Procs int

	// TickInterval paces the built-in callback-dispatch tick.
	// Defaults to one millisecond.
	TickInterval time.Duration

	// DisableTick suppresses the built-in tick. The host must then call
	// CheckCallbacks from its own periodic entry for callbacks to run.
	DisableTick bool
}

// State is a PRCU instance: the global record plus the per-processor table.
// Created once, never destroyed; Shutdown only stops the built-in tick.
type State struct {
	// gpv is the global grace-period version. Bumped once per writer.
	gpv atomic.Uint64

	// cbv is the global callback-readiness version. Trails gpv; published
	// by writers after their grace period ends.
	cbv atomic.Uint64

	// activeCtr counts reader depths migrated off processors
	// mid-critical-section by context switches.
	activeCtr atomic.Int64

	// Run counters for Snapshot.
	queued  atomic.Uint64
	invoked atomic.Uint64
	graces  atomic.Uint64

	// mtx serializes writers from the self-stamp step onwards.
	mtx sync.Mutex

	// barrierMtx serializes Barrier calls.
	barrierMtx sync.Mutex

	// barrierCPUCount is the remaining-sentinel count of the current
	// barrier, held above zero by an initial count of one until every
	// sentinel is registered.
	barrierCPUCount atomic.Int32

	// barrierDone completes when the last sentinel fires. Written under
	// barrierMtx; read by sentinel callbacks, which are ordered before the
	// next Barrier by the completion itself.
	barrierDone *waitq.Completion

	// waitQ blocks writers until activeCtr drains to zero.
	waitQ waitq.Queue

	cpus *percpu.Table

	stop     chan struct{}
	stopOnce sync.Once
}

// NewState creates an independent PRCU instance.
func NewState(cfg *Config) *State {
	if cfg == nil {
		cfg = &Config{}
	}
	procs := cfg.Procs
	if procs <= 0 {
		procs = runtime.GOMAXPROCS(0)
	}
	s := &State{cpus: percpu.NewTable(procs)}
	if !cfg.DisableTick {
		interval := cfg.TickInterval
		if interval <= 0 {
			interval = defaultTickInterval
		}
		s.stop = make(chan struct{})
		go s.tickLoop(interval)
	}
	return s
}

// Procs returns the number of logical processors.
func (s *State) Procs() int { return s.cpus.Len() }

// Shutdown stops the built-in dispatcher tick. Queued callbacks remain and
// still run via CheckCallbacks or Barrier.
func (s *State) Shutdown() {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
		}
	})
}

// tickLoop is the built-in stand-in for the host's scheduling-clock entry.
func (s *State) tickLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.checkAll()
		}
	}
}

// Snapshot is a point-in-time view of the instance, for tooling and tests.
type Snapshot struct {
	GracePeriodVersion uint64
	CallbackVersion    uint64
	ActiveMigrated     int64
	GracePeriods       uint64
	CallbacksQueued    uint64
	CallbacksInvoked   uint64
	Procs              int
}

// Stats returns a snapshot of the instance's counters. The fields are read
// independently, so the view is not a consistent cut. The version and
// counter fields are monotone across calls; ActiveMigrated rises and falls
// with migrated readers.
func (s *State) Stats() Snapshot {
	return Snapshot{
		GracePeriodVersion: s.gpv.Load(),
		CallbackVersion:    s.cbv.Load(),
		ActiveMigrated:     s.activeCtr.Load(),
		GracePeriods:       s.graces.Load(),
		CallbacksQueued:    s.queued.Load(),
		CallbacksInvoked:   s.invoked.Load(),
		Procs:              s.cpus.Len(),
	}
}

// advance moves a up to v, never backwards.
func advance(a *atomic.Uint64, v uint64) {
	for {
		cur := a.Load()
		if cur >= v || a.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Process-wide default instance.

var defaultState atomic.Pointer[State]

// Init installs the process-wide PRCU instance. Safe to call multiple
// times; only the first call (or the first use of any package operation)
// takes effect.
func Init(cfg *Config) {
	s := NewState(cfg)
	if !defaultState.CompareAndSwap(nil, s) {
		s.Shutdown()
	}
}

// Default returns the process-wide instance, creating it with defaults on
// first use.
func Default() *State {
	if s := defaultState.Load(); s != nil {
		return s
	}
	Init(nil)
	return defaultState.Load()
}
