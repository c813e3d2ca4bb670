// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fakes

import (
	"bytes"
	"sync"

	"github.com/BlindspotSoftware/streambridge/pkg/headers"
	"github.com/BlindspotSoftware/streambridge/pkg/stream"
)

// Event kinds recorded by Handler.
const (
	EventHeaders  = "headers"
	EventData     = "data"
	EventTrailers = "trailers"
	EventCancel   = "cancel"
	EventError    = "error"
)

// Event is one handler call.
type Event struct {
	Kind      string
	Headers   headers.Headers
	Data      []byte
	EndStream bool
	Err       *stream.Error
}

// Handler is a stream.Handler recording every call.
//
// Behavior:
//   - Every call is appended to Events in arrival order.
//   - OnEvent, if set, runs after an event was recorded, outside the lock,
//     so it may call back into the stream.
//   - Overlapping calls are counted in Overlaps; a correct stream never
//     produces any.
//
// Methods are safe for concurrent use.
type Handler struct {
	OnEvent func(Event)

	mu       sync.Mutex
	events   []Event
	active   int
	overlaps int
}

var _ stream.Handler = (*Handler)(nil)

func (h *Handler) OnResponseHeaders(hdrs headers.ResponseHeaders, endStream bool) {
	h.record(Event{Kind: EventHeaders, Headers: hdrs.Headers, EndStream: endStream})
}

func (h *Handler) OnResponseData(data []byte, endStream bool) {
	h.record(Event{Kind: EventData, Data: bytes.Clone(data), EndStream: endStream})
}

func (h *Handler) OnResponseTrailers(t headers.ResponseTrailers) {
	h.record(Event{Kind: EventTrailers, Headers: t.Headers, EndStream: true})
}

func (h *Handler) OnCancel() {
	h.record(Event{Kind: EventCancel})
}

func (h *Handler) OnError(err *stream.Error) {
	h.record(Event{Kind: EventError, Err: err})
}

// Events returns a copy of the recorded events.
func (h *Handler) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, len(h.events))
	copy(out, h.events)

	return out
}

// Kinds returns the kinds of the recorded events.
func (h *Handler) Kinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = e.Kind
	}

	return out
}

// Overlaps returns how often a call started while another was running.
func (h *Handler) Overlaps() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.overlaps
}

func (h *Handler) record(e Event) {
	h.mu.Lock()
	h.active++

	if h.active > 1 {
		h.overlaps++
	}

	h.events = append(h.events, e)
	h.mu.Unlock()

	if h.OnEvent != nil {
		h.OnEvent(e)
	}

	h.mu.Lock()
	h.active--
	h.mu.Unlock()
}
