// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lihaol/prcu-go/prcu"
)

// snapshot is the torture payload: writers replace it, readers verify they
// never see one that has already been reclaimed.
type snapshot struct {
	generation uint64
	reclaimed  atomic.Bool
}

// counters aggregates workload statistics across workers.
type counters struct {
	reads      atomic.Uint64
	graces     atomic.Uint64
	callbacks  atomic.Uint64
	barriers   atomic.Uint64
	violations atomic.Uint64
}

func run(ctx context.Context, log *logrus.Logger, o opts) error {
	prcu.Init(&prcu.Config{Procs: o.procs, TickInterval: o.tick})

	info := prcu.GetInfo()
	log.WithFields(logrus.Fields{
		"version":    info.Version,
		"procs":      info.Procs,
		"gomaxprocs": runtime.GOMAXPROCS(0),
		"readers":    o.readers,
		"writers":    o.writers,
		"callers":    o.callers,
		"duration":   o.duration,
	}).Info("starting torture run")

	ctx, cancel := context.WithTimeout(ctx, o.duration)
	defer cancel()

	var cur atomic.Pointer[snapshot]
	cur.Store(&snapshot{})

	var c counters
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < o.readers; i++ {
		id := i
		g.Go(func() error { return reader(ctx, id, &cur, &c) })
	}
	for i := 0; i < o.writers; i++ {
		g.Go(func() error { return writer(ctx, &cur, &c) })
	}
	for i := 0; i < o.callers; i++ {
		g.Go(func() error { return caller(ctx, &c) })
	}
	if o.barrierEvery > 0 {
		g.Go(func() error { return barrierLoop(ctx, log, o.barrierEvery, &c) })
	}

	// Progress reporting.
	g.Go(func() error {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				st := prcu.Stats()
				log.WithFields(logrus.Fields{
					"gpv":     st.GracePeriodVersion,
					"cbv":     st.CallbackVersion,
					"reads":   c.reads.Load(),
					"graces":  c.graces.Load(),
					"queued":  st.CallbacksQueued,
					"invoked": st.CallbacksInvoked,
				}).Debug("progress")
			}
		}
	})

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}

	// Final drain and ledger check.
	prcu.Barrier()
	st := prcu.Stats()

	log.WithFields(logrus.Fields{
		"reads":      c.reads.Load(),
		"graces":     c.graces.Load(),
		"callbacks":  c.callbacks.Load(),
		"barriers":   c.barriers.Load(),
		"gpv":        st.GracePeriodVersion,
		"cbv":        st.CallbackVersion,
		"queued":     st.CallbacksQueued,
		"invoked":    st.CallbacksInvoked,
		"violations": c.violations.Load(),
	}).Info("torture run complete")

	if n := c.violations.Load(); n > 0 {
		return fmt.Errorf("%d grace-period violations observed", n)
	}
	if st.CallbacksQueued != st.CallbacksInvoked {
		return fmt.Errorf("callback ledger mismatch after final barrier: queued %d, invoked %d",
			st.CallbacksQueued, st.CallbacksInvoked)
	}
	if st.CallbackVersion > st.GracePeriodVersion {
		return fmt.Errorf("version invariant broken: cbv %d > gpv %d",
			st.CallbackVersion, st.GracePeriodVersion)
	}
	if st.ActiveMigrated != 0 {
		return fmt.Errorf("migrated reader counter did not settle: %d", st.ActiveMigrated)
	}
	return nil
}

// reader spins through read-side sections, verifying the loaded snapshot
// stays unreclaimed for the whole section. Every few iterations it nests a
// section or simulates a context switch mid-section to exercise the
// migration path.
func reader(ctx context.Context, id int, cur *atomic.Pointer[snapshot], c *counters) error {
	for n := 0; ; n++ {
		if ctx.Err() != nil {
			return nil
		}
		prcu.ReadLock()
		s := cur.Load()
		if s.reclaimed.Load() {
			c.violations.Add(1)
		}
		switch {
		case n%7 == 0:
			prcu.ReadLock()
			if s.reclaimed.Load() {
				c.violations.Add(1)
			}
			prcu.ReadUnlock()
		case n%13 == 0:
			prcu.NoteContextSwitch()
			runtime.Gosched()
		}
		if s.reclaimed.Load() {
			c.violations.Add(1)
		}
		prcu.ReadUnlock()
		c.reads.Add(1)
	}
}

// writer replaces the shared snapshot, waits out a grace period, and only
// then reclaims the previous one.
func writer(ctx context.Context, cur *atomic.Pointer[snapshot], c *counters) error {
	var generation uint64
	for {
		if ctx.Err() != nil {
			return nil
		}
		generation++
		old := cur.Swap(&snapshot{generation: generation})
		prcu.Synchronize()
		old.reclaimed.Store(true)
		c.graces.Add(1)
	}
}

// caller floods the deferred-callback path.
func caller(ctx context.Context, c *counters) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		prcu.Call(new(prcu.Callback), func(*prcu.Callback) {
			c.callbacks.Add(1)
		})
		// Pace enqueues so the callback backlog stays bounded.
		time.Sleep(100 * time.Microsecond)
	}
}

// barrierLoop periodically drains all outstanding callbacks and checks that
// every callback queued before each pass has been invoked when it returns.
func barrierLoop(ctx context.Context, log *logrus.Logger, every time.Duration, c *counters) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			queuedBefore := prcu.Stats().CallbacksQueued
			prcu.Barrier()
			c.barriers.Add(1)
			st := prcu.Stats()
			if st.CallbacksInvoked < queuedBefore {
				c.violations.Add(1)
				log.WithFields(logrus.Fields{
					"queued_before": queuedBefore,
					"invoked":       st.CallbacksInvoked,
				}).Error("barrier returned with earlier callbacks outstanding")
			}
			log.WithFields(logrus.Fields{
				"queued":  st.CallbacksQueued,
				"invoked": st.CallbacksInvoked,
			}).Debug("barrier pass")
		}
	}
}
