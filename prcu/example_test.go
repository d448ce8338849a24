// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prcu_test

import (
	"fmt"
	"sync/atomic"

	"github.com/lihaol/prcu-go/prcu"
)

type settings struct {
	limit int
}

// Example shows the read-mostly update pattern: readers dereference the
// current snapshot inside a read-side section; the writer swaps in a new
// snapshot and waits a grace period before recycling the old one.
func Example() {
	prcu.Init(nil)

	var cur atomic.Pointer[settings]
	cur.Store(&settings{limit: 10})

	// Reader: cheap, nestable, never blocks writers directly.
	prcu.ReadLock()
	fmt.Println("limit:", cur.Load().limit)
	prcu.ReadUnlock()

	// Writer: publish, then wait out all pre-existing readers.
	old := cur.Swap(&settings{limit: 20})
	prcu.Synchronize()
	// No reader can still hold old here.
	_ = old

	prcu.ReadLock()
	fmt.Println("limit:", cur.Load().limit)
	prcu.ReadUnlock()

	// Output:
	// limit: 10
	// limit: 20
}

// Example_callbacks defers cleanup instead of blocking the writer.
func Example_callbacks() {
	prcu.Init(nil)

	var reclaimed atomic.Int32
	for i := 0; i < 3; i++ {
		prcu.Call(new(prcu.Callback), func(*prcu.Callback) {
			reclaimed.Add(1)
		})
	}

	// Barrier waits for every callback enqueued above to have run.
	prcu.Barrier()
	fmt.Println("reclaimed:", reclaimed.Load())

	// Output:
	// reclaimed: 3
}
