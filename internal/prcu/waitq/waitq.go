// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package waitq provides the blocking primitives the PRCU runtime consumes
// from its host: a wake-all wait queue (wait_event/wake_up) and a one-shot
// completion. Both are thin shims over the Go runtime's native facilities.
package waitq

import "sync"

// Queue is a wait queue. Waiters block until their condition holds; Wake
// re-evaluates every waiter.
//
// The zero value is ready to use.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// Wait blocks the caller until done() returns true. done is evaluated under
// the queue lock, so a waker that changes the condition before calling Wake
// cannot race a waiter into a lost wakeup.
func (q *Queue) Wait(done func() bool) {
	q.mu.Lock()
	if q.cond == nil {
		q.cond = sync.NewCond(&q.mu)
	}
	for !done() {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Wake re-evaluates all waiters' conditions.
func (q *Queue) Wake() {
	q.mu.Lock()
	if q.cond != nil {
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// Completion is a one-shot completion. Complete may be called any number of
// times; only the first has an effect. Wait returns once completed, even if
// Complete ran first.
type Completion struct {
	once sync.Once
	done chan struct{}
}

// NewCompletion returns a fresh, uncompleted Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Complete marks the completion done and releases all waiters.
func (c *Completion) Complete() {
	c.once.Do(func() { close(c.done) })
}

// Wait blocks until Complete has been called.
func (c *Completion) Wait() {
	<-c.done
}
