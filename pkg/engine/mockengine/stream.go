// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mockengine

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"github.com/BlindspotSoftware/streambridge/pkg/headers"
)

// ErrOutOfOrder is returned by the Receive methods when asked to drive an
// event order a real engine never produces. See Stream.AllowOutOfOrder.
var ErrOutOfOrder = errors.New("inbound event out of order")

// CallKind identifies a recorded outbound call.
type CallKind int

const (
	CallSendHeaders CallKind = iota + 1
	CallSendData
	CallSendTrailers
	CallReadData
	CallCancel
)

func (k CallKind) String() string {
	switch k {
	case CallSendHeaders:
		return "send-headers"
	case CallSendData:
		return "send-data"
	case CallSendTrailers:
		return "send-trailers"
	case CallReadData:
		return "read-data"
	case CallCancel:
		return "cancel"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// Call is one outbound call as the bridge made it. Fields not used by a
// kind are zero.
type Call struct {
	Kind      CallKind
	Headers   headers.Headers
	Data      []byte
	EndStream bool
	Size      int
}

type driverState int

const (
	driverIdle driverState = iota
	driverStreaming
	driverFinished
)

func (s driverState) String() string {
	switch s {
	case driverIdle:
		return "before headers"
	case driverStreaming:
		return "streaming"
	default:
		return "finished"
	}
}

// Stream is a mock engine.StreamHandle.
type Stream struct {
	mu                  sync.Mutex
	cb                  engine.Callbacks
	explicitFlowControl bool
	allowOutOfOrder     bool
	state               driverState
	calls               []Call
	errs                []error

	// Explicit flow control: inbound body bytes wait in buffer until a
	// ReadData credit releases them. Trailers and the end of stream queue
	// behind the buffer.
	credits   []int
	buffer    []byte
	bufferEnd bool
	trailers  *headers.Headers
}

var _ engine.StreamHandle = (*Stream)(nil)

func newStream(cb engine.Callbacks, explicitFlowControl bool) *Stream {
	return &Stream{
		cb:                  cb,
		explicitFlowControl: explicitFlowControl,
	}
}

// AllowOutOfOrder turns off the ordering check of the Receive methods, so a
// test can drive a misbehaving engine into the callbacks.
func (s *Stream) AllowOutOfOrder() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowOutOfOrder = true

	return s
}

// ExplicitFlowControl reports the mode the stream was started with.
func (s *Stream) ExplicitFlowControl() bool {
	return s.explicitFlowControl
}

func (s *Stream) SendHeaders(h headers.Headers, endStream bool) {
	s.recordCall(Call{Kind: CallSendHeaders, Headers: h, EndStream: endStream})
}

func (s *Stream) SendData(data []byte, endStream bool) {
	s.recordCall(Call{Kind: CallSendData, Data: bytes.Clone(data), EndStream: endStream})
}

func (s *Stream) SendTrailers(t headers.Headers) {
	s.recordCall(Call{Kind: CallSendTrailers, Headers: t, EndStream: true})
}

// ReadData records the call and releases up to n buffered bytes.
func (s *Stream) ReadData(n int) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Kind: CallReadData, Size: n})
	s.credits = append(s.credits, n)
	s.mu.Unlock()

	_ = s.pump()
}

// Cancel records the call. The inbound cancel is up to the test driver.
func (s *Stream) Cancel() {
	s.recordCall(Call{Kind: CallCancel})
}

// Calls returns the recorded outbound calls in call order.
func (s *Stream) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.calls)
}

// CallsOf returns the recorded calls of one kind.
func (s *Stream) CallsOf(kind CallKind) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call

	for _, c := range s.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}

	return out
}

// CallbackErrors returns every error the callbacks returned, including
// those of deliveries released by ReadData.
func (s *Stream) CallbackErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.errs)
}

// Finished reports whether the final inbound event was delivered.
func (s *Stream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == driverFinished && !s.pendingLocked()
}

// ReceiveHeaders delivers response headers.
func (s *Stream) ReceiveHeaders(h headers.Headers, endStream bool) error {
	s.mu.Lock()

	if err := s.advanceLocked("headers", endStream, driverIdle); err != nil {
		s.mu.Unlock()

		return err
	}

	s.mu.Unlock()

	return s.record(s.cb.OnHeaders(h, endStream))
}

// ReceiveData delivers a body chunk. Under explicit flow control the bytes
// are buffered until ReadData asks for them.
func (s *Stream) ReceiveData(data []byte, endStream bool) error {
	s.mu.Lock()

	if err := s.advanceLocked("data", endStream, driverStreaming); err != nil {
		s.mu.Unlock()

		return err
	}

	if !s.explicitFlowControl {
		s.mu.Unlock()

		return s.record(s.cb.OnData(data, endStream))
	}

	s.buffer = append(s.buffer, data...)
	s.bufferEnd = endStream
	s.mu.Unlock()

	return s.pump()
}

// ReceiveTrailers delivers response trailers. Under explicit flow control
// they wait until buffered data has been read.
func (s *Stream) ReceiveTrailers(t headers.Headers) error {
	s.mu.Lock()

	if err := s.advanceLocked("trailers", true, driverStreaming); err != nil {
		s.mu.Unlock()

		return err
	}

	if s.explicitFlowControl && len(s.buffer) > 0 {
		s.trailers = &t
		s.mu.Unlock()

		return nil
	}

	s.mu.Unlock()

	return s.record(s.cb.OnTrailers(t))
}

// ReceiveCancel delivers a cancellation. Buffered data is discarded.
func (s *Stream) ReceiveCancel() error {
	s.mu.Lock()

	if err := s.advanceLocked("cancel", true, driverIdle, driverStreaming); err != nil {
		s.mu.Unlock()

		return err
	}

	s.discardLocked()
	s.mu.Unlock()

	return s.record(s.cb.OnCancel())
}

// ReceiveError delivers an engine error. Buffered data is discarded.
func (s *Stream) ReceiveError(code int, message string, attemptCount int) error {
	s.mu.Lock()

	if err := s.advanceLocked("error", true, driverIdle, driverStreaming); err != nil {
		s.mu.Unlock()

		return err
	}

	s.discardLocked()
	s.mu.Unlock()

	return s.record(s.cb.OnError(code, message, attemptCount))
}

// abort cancels the stream unless its final event was already delivered.
func (s *Stream) abort() {
	s.mu.Lock()

	if s.state == driverFinished && !s.pendingLocked() {
		s.mu.Unlock()

		return
	}

	s.state = driverFinished
	s.discardLocked()
	s.mu.Unlock()

	_ = s.record(s.cb.OnCancel())
}

func (s *Stream) advanceLocked(event string, end bool, from ...driverState) error {
	if !s.allowOutOfOrder && !slices.Contains(from, s.state) {
		return fmt.Errorf("%w: %s %s", ErrOutOfOrder, event, s.state)
	}

	if end {
		s.state = driverFinished
	} else if s.state == driverIdle {
		s.state = driverStreaming
	}

	return nil
}

func (s *Stream) pendingLocked() bool {
	return len(s.buffer) > 0 || s.bufferEnd || s.trailers != nil
}

func (s *Stream) discardLocked() {
	s.buffer = nil
	s.bufferEnd = false
	s.trailers = nil
}

// pump delivers whatever the buffer and credits allow. An empty end of
// stream and trailers behind a drained buffer need no credit.
func (s *Stream) pump() error {
	var errs []error

	for {
		s.mu.Lock()
		deliver := s.nextLocked()
		s.mu.Unlock()

		if deliver == nil {
			return errors.Join(errs...)
		}

		if err := s.record(deliver()); err != nil {
			errs = append(errs, err)
		}
	}
}

func (s *Stream) nextLocked() func() error {
	if len(s.buffer) == 0 {
		switch {
		case s.bufferEnd:
			s.bufferEnd = false

			return func() error { return s.cb.OnData(nil, true) }
		case s.trailers != nil:
			t := *s.trailers
			s.trailers = nil

			return func() error { return s.cb.OnTrailers(t) }
		default:
			return nil
		}
	}

	if len(s.credits) == 0 {
		return nil
	}

	n := min(s.credits[0], len(s.buffer))
	s.credits = s.credits[1:]

	chunk := bytes.Clone(s.buffer[:n])
	s.buffer = s.buffer[n:]

	end := len(s.buffer) == 0 && s.bufferEnd
	if end {
		s.bufferEnd = false
	}

	return func() error { return s.cb.OnData(chunk, end) }
}

func (s *Stream) recordCall(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, c)
}

func (s *Stream) record(err error) error {
	if err != nil {
		s.mu.Lock()
		s.errs = append(s.errs, err)
		s.mu.Unlock()
	}

	return err
}
