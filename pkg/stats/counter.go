// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"strings"
	"sync/atomic"
)

// Recorder receives counter increments. Engines implement it.
type Recorder interface {
	RecordCounter(series string, count int)
}

type recorderBox struct {
	r Recorder
}

// Handle is a non-owning reference to a Recorder.
//
// The owner of the Recorder releases the handle when it is torn down. Holders
// of the handle never keep the Recorder alive and observe the release
// atomically, from any goroutine.
type Handle struct {
	p atomic.Pointer[recorderBox]
}

// NewHandle returns a live handle for r.
func NewHandle(r Recorder) *Handle {
	h := &Handle{}
	if r != nil {
		h.p.Store(&recorderBox{r: r})
	}

	return h
}

// Release detaches the Recorder. It is safe to call more than once.
func (h *Handle) Release() {
	h.p.Store(nil)
}

// Live reports whether the Recorder is still attached.
func (h *Handle) Live() bool {
	return h.load() != nil
}

func (h *Handle) load() Recorder {
	if h == nil {
		return nil
	}

	box := h.p.Load()
	if box == nil {
		return nil
	}

	return box.r
}

// Counter is a named counter series.
type Counter struct {
	series string
	handle *Handle
}

// NewCounter joins elements with "." into the series name.
// A nil handle yields a counter whose increments are no-ops.
func NewCounter(h *Handle, elements ...Element) *Counter {
	parts := make([]string, len(elements))
	for i, e := range elements {
		parts[i] = e.value
	}

	return &Counter{
		series: strings.Join(parts, "."),
		handle: h,
	}
}

// Series returns the dotted series name.
func (c *Counter) Series() string {
	return c.series
}

// Increment adds one to the counter.
func (c *Counter) Increment() {
	c.IncrementBy(1)
}

// IncrementBy forwards count to the engine. Aggregation is left to the
// engine. Once the engine is gone this is a no-op.
func (c *Counter) IncrementBy(count int) {
	r := c.handle.load()
	if r == nil {
		return
	}

	r.RecordCounter(c.series, count)
}

// Client hands out counters bound to one engine handle.
type Client struct {
	handle *Handle
}

// NewClient returns a Client for h.
func NewClient(h *Handle) *Client {
	return &Client{handle: h}
}

// Counter returns a counter for the series built from elements.
func (c *Client) Counter(elements ...Element) *Counter {
	return NewCounter(c.handle, elements...)
}
