// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serial provides an exclusive execution context for callbacks.
package serial

import "sync"

// Queue runs submitted functions one at a time, in submission order.
//
// Queue owns no goroutine. The caller that finds the queue idle drains it in
// its own goroutine; callers arriving while it drains only enqueue and
// return. An uncontended Do therefore runs fn synchronously before returning.
// A function submitted from inside a running function runs after the
// current one returns.
type Queue struct {
	mu       sync.Mutex
	pending  []func()
	draining bool
}

// Do submits fn and runs the queue.
func (q *Queue) Do(fn func()) {
	q.Push(fn)
	q.Run()
}

// Push appends fn without running it. Callers that must order submission
// with their own bookkeeping push under their lock and call Run after
// releasing it.
func (q *Queue) Push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Run drains the queue unless another caller already does.
func (q *Queue) Run() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()

		return
	}

	q.draining = true
	q.mu.Unlock()

	q.drain()
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()

			return
		}

		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}
