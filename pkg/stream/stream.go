// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream is the application-facing side of the bridge.
//
// A Stream sends request frames to an engine and receives the response
// through a Handler. Outbound calls follow the state machine
//
//	Idle -> HeadersSent -> DataSent* -> Closed
//
// with Cancel reachable from every state that is not final. Closed only ends
// the request, so a stream may still be cancelled after Close while the
// response is running. Calls that break the machine fail with
// ErrIllegalState and never reach the engine, as do sends after the engine
// ended the stream with a cancel or an error.
//
// Inbound events are validated by the stream before they are dispatched, so
// a misbehaving engine cannot re-enter a handler after the final event.
package stream

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/BlindspotSoftware/streambridge/internal/fsm"
	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"github.com/BlindspotSoftware/streambridge/pkg/headers"
	"go.uber.org/zap"
)

var (
	// ErrIllegalState is returned for outbound calls the state machine forbids.
	ErrIllegalState = errors.New("illegal stream state")
	// ErrProtocolViolation is returned to an engine delivering events out of order.
	ErrProtocolViolation = errors.New("engine protocol violation")
)

type outboundState int

const (
	stateIdle outboundState = iota
	stateHeadersSent
	stateDataSent
	stateClosed
	stateCancelled
)

func (s outboundState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateHeadersSent:
		return "headers-sent"
	case stateDataSent:
		return "data-sent"
	case stateClosed:
		return "closed"
	case stateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outboundState(%d)", int(s))
	}
}

// Idle may close directly when the headers carry endStream. Closed only
// refuses further sends; the response may still be running and can be
// cancelled.
//
//nolint:gochecknoglobals
var outboundTransitions = fsm.Transitions[outboundState]{
	stateIdle:        {stateHeadersSent, stateClosed, stateCancelled},
	stateHeadersSent: {stateDataSent, stateClosed, stateCancelled},
	stateDataSent:    {stateDataSent, stateClosed, stateCancelled},
	stateClosed:      {stateCancelled},
}

// Stream is one request/response exchange. Methods are safe for concurrent
// use and never block on I/O.
type Stream struct {
	handle              engine.StreamHandle
	sink                *sink
	explicitFlowControl bool

	out       *fsm.Machine[outboundState]
	cancelled atomic.Bool
	// aborted is set once the engine ended the stream with a cancel or an
	// error. Sends fail from then on.
	aborted atomic.Bool

	log *zap.Logger
}

// SendHeaders sends the request headers. With endStream set the request has
// no body and the outbound side is closed.
func (s *Stream) SendHeaders(h headers.RequestHeaders, endStream bool) error {
	next := stateHeadersSent
	if endStream {
		next = stateClosed
	}

	return s.send("send headers", next, func(from outboundState) error {
		if from != stateIdle {
			return errHeadersSent
		}

		s.handle.SendHeaders(h.Headers, endStream)

		return nil
	})
}

// SendData sends one body chunk.
func (s *Stream) SendData(data []byte) error {
	return s.send("send data", stateDataSent, func(outboundState) error {
		s.handle.SendData(data, false)

		return nil
	})
}

// Close sends the last body chunk, which may be empty, and closes the
// outbound side.
func (s *Stream) Close(data []byte) error {
	return s.send("close", stateClosed, func(from outboundState) error {
		if from == stateIdle {
			return errNoHeaders
		}

		s.handle.SendData(data, true)

		return nil
	})
}

// CloseWithTrailers closes the outbound side with trailers.
func (s *Stream) CloseWithTrailers(t headers.RequestTrailers) error {
	return s.send("close with trailers", stateClosed, func(from outboundState) error {
		if from == stateIdle {
			return errNoHeaders
		}

		s.handle.SendTrailers(t.Headers)

		return nil
	})
}

// Cancel asks the engine to abort the stream. The engine is told at most
// once; later calls, and calls after the response completed, do nothing.
// After Cancel only OnCancel or OnError reach the handler.
func (s *Stream) Cancel() error {
	if s.sink.finished() {
		return nil
	}

	err := s.out.Do(stateCancelled, func(outboundState) error {
		s.cancelled.Store(true)
		s.handle.Cancel()

		return nil
	})
	if errors.Is(err, fsm.ErrTransition) {
		s.log.Debug("Stream already cancelled")

		return nil
	}

	return err
}

// ReadData grants the engine one more data callback of at most n bytes.
// It is only valid on streams started with explicit flow control.
func (s *Stream) ReadData(n int) error {
	if !s.explicitFlowControl {
		return fmt.Errorf("%w: read data without explicit flow control", ErrIllegalState)
	}

	if n <= 0 {
		return fmt.Errorf("%w: read data with non-positive size %d", ErrIllegalState, n)
	}

	if s.cancelled.Load() || s.sink.finished() {
		return nil
	}

	s.handle.ReadData(n)

	return nil
}

// ExplicitFlowControl reports the mode the stream was started with.
func (s *Stream) ExplicitFlowControl() bool {
	return s.explicitFlowControl
}

// Done is closed after the handler returned from the final event.
func (s *Stream) Done() <-chan struct{} {
	return s.sink.done
}

var (
	errHeadersSent = errors.New("headers already sent")
	errNoHeaders   = errors.New("headers not sent")
	errAborted     = errors.New("stream ended by engine")
)

func (s *Stream) send(op string, next outboundState, fn func(from outboundState) error) error {
	err := s.out.Do(next, func(from outboundState) error {
		if s.aborted.Load() {
			return errAborted
		}

		return fn(from)
	})
	if err == nil {
		return nil
	}

	err = fmt.Errorf("%w: %s in state %s: %w", ErrIllegalState, op, s.out.Current(), err)
	s.log.Debug("Rejected outbound call", zap.Error(err))

	return err
}
