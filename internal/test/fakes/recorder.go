// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fakes

import "sync"

// CounterCall is one recorded counter increment.
type CounterCall struct {
	Series string
	Count  int
}

// Recorder is an in-memory stats recorder.
//
// Every RecordCounter call is appended to Calls in arrival order; nothing is
// aggregated. Methods are safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []CounterCall
}

func (r *Recorder) RecordCounter(series string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, CounterCall{Series: series, Count: count})
}

// Calls returns a copy of the recorded increments.
func (r *Recorder) Calls() []CounterCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CounterCall, len(r.calls))
	copy(out, r.calls)

	return out
}
