// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package main implements the prcutorture stress tool.
//
// prcutorture hammers the PRCU runtime with concurrent readers, writers,
// and callback traffic while continuously checking the grace-period
// contract: no reader may ever observe state that a writer reclaimed after
// a grace period, and a barrier must account for every callback enqueued
// before it.
//
// Usage:
//
//	prcutorture --duration 30s --readers 8 --writers 2 --callers 2
//
// The tool exits non-zero if any protocol violation is observed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

type opts struct {
	duration time.Duration
	readers  int
	writers  int
	callers  int
	procs    int
	tick     time.Duration

	barrierEvery time.Duration
	verbose      bool
}

func main() {
	var o opts
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:   "prcutorture",
		Short: "Torture test for the Pure-Go PRCU runtime",
		Long: `prcutorture runs an rcutorture-style workload against the PRCU runtime:
readers spin through (optionally nested) read-side critical sections and
simulated context switches, writers replace a shared snapshot and wait out
grace periods before reclaiming the old one, and caller workers flood the
deferred-callback path, punctuated by barriers.

Every reader continuously verifies that it never observes reclaimed state;
every barrier verifies that the callback ledgers balance. Any violation is
logged and makes the run fail.

Examples:
  prcutorture --duration 30s
  prcutorture --readers 16 --writers 4 --procs 8 --barrier-every 2s`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			return run(cmd.Context(), log, o)
		},
	}

	root.Flags().DurationVarP(&o.duration, "duration", "d", 10*time.Second, "how long to run the workload")
	root.Flags().IntVar(&o.readers, "readers", 8, "number of reader workers")
	root.Flags().IntVar(&o.writers, "writers", 2, "number of writer workers")
	root.Flags().IntVar(&o.callers, "callers", 2, "number of callback-enqueue workers")
	root.Flags().IntVar(&o.procs, "procs", 0, "logical processors for the runtime (0 = GOMAXPROCS)")
	root.Flags().DurationVar(&o.tick, "tick", time.Millisecond, "callback dispatcher tick interval")
	root.Flags().DurationVar(&o.barrierEvery, "barrier-every", time.Second, "interval between barrier passes (0 = final barrier only)")
	root.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("torture run failed")
		os.Exit(1)
	}
}
