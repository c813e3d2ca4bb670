// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mockengine provides a deterministic in-process engine for tests.
//
// The mock never performs I/O. It records every outbound call of its streams
// and lets a test drive the inbound side with the Receive methods, which
// deliver into the stream's callbacks synchronously in the calling
// goroutine. Flow control works the same way as in a real engine.
//
// Instances share no state, so parallel tests may each use their own engine.
package mockengine

import (
	"errors"
	"sync"

	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"github.com/BlindspotSoftware/streambridge/pkg/stats"
)

// ErrTerminated is returned when starting a stream on a terminated engine.
var ErrTerminated = errors.New("engine terminated")

// Run is one recorded RunWithConfig or RunWithYAML call.
type Run struct {
	Config *engine.Config
	YAML   string
	Level  engine.LogLevel
}

// CounterRecord is one recorded RecordCounter call.
type CounterRecord struct {
	Series string
	Count  int
}

// Engine is a mock engine.Engine.
type Engine struct {
	mu         sync.Mutex
	streams    []*Stream
	runs       []Run
	counters   []CounterRecord
	terminated bool

	stats *stats.Handle
}

var _ engine.Engine = (*Engine)(nil)

// New returns an empty mock engine.
func New() *Engine {
	e := &Engine{}
	e.stats = stats.NewHandle(e)

	return e
}

// StartStream returns a new *Stream bound to cb.
//
//nolint:ireturn
func (e *Engine) StartStream(cb engine.Callbacks, explicitFlowControl bool) (engine.StreamHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return nil, ErrTerminated
	}

	s := newStream(cb, explicitFlowControl)
	e.streams = append(e.streams, s)

	return s, nil
}

// RunWithConfig records the call. The mock has nothing to start.
func (e *Engine) RunWithConfig(cfg *engine.Config, level engine.LogLevel) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runs = append(e.runs, Run{Config: cfg, Level: level})

	return engine.StatusSuccess
}

// RunWithYAML records the call. The mock has nothing to start.
func (e *Engine) RunWithYAML(yaml string, level engine.LogLevel) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runs = append(e.runs, Run{YAML: yaml, Level: level})

	return engine.StatusSuccess
}

// RecordCounter records the increment as is.
func (e *Engine) RecordCounter(series string, count int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.counters = append(e.counters, CounterRecord{Series: series, Count: count})
}

// Terminate releases the stats handle and cancels every stream whose
// response is still running.
func (e *Engine) Terminate() {
	e.mu.Lock()
	e.terminated = true
	streams := append([]*Stream(nil), e.streams...)
	e.mu.Unlock()

	e.stats.Release()

	for _, s := range streams {
		s.abort()
	}
}

// Stats returns the handle counters use to reach this engine.
func (e *Engine) Stats() *stats.Handle {
	return e.stats
}

// Streams returns the streams started so far, oldest first.
func (e *Engine) Streams() []*Stream {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*Stream(nil), e.streams...)
}

// LastStream returns the most recently started stream, or nil.
func (e *Engine) LastStream() *Stream {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.streams) == 0 {
		return nil
	}

	return e.streams[len(e.streams)-1]
}

// Runs returns the recorded run calls.
func (e *Engine) Runs() []Run {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]Run(nil), e.runs...)
}

// Counters returns the recorded counter increments in call order.
func (e *Engine) Counters() []CounterRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]CounterRecord(nil), e.counters...)
}
