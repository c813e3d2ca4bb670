// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"
	"fmt"

	"github.com/BlindspotSoftware/streambridge/internal/fsm"
	"github.com/BlindspotSoftware/streambridge/internal/serial"
	"github.com/BlindspotSoftware/streambridge/pkg/headers"
	"go.uber.org/zap"
)

type inboundState int

const (
	awaitingHeaders inboundState = iota
	receivingData
	inboundDone
)

func (s inboundState) String() string {
	switch s {
	case awaitingHeaders:
		return "awaiting-headers"
	case receivingData:
		return "receiving-data"
	case inboundDone:
		return "done"
	default:
		return fmt.Sprintf("inboundState(%d)", int(s))
	}
}

//nolint:gochecknoglobals
var inboundTransitions = fsm.Transitions[inboundState]{
	awaitingHeaders: {receivingData, inboundDone},
	receivingData:   {receivingData, inboundDone},
}

var (
	errNotAwaitingHeaders = errors.New("headers already received")
	errNotReceiving       = errors.New("no headers received")
)

// sink implements engine.Callbacks for one Stream.
//
// The inbound state is checked and the dispatch is queued in one step under
// the state machine's lock, so concurrent engine goroutines cannot reorder
// events. Handlers run from the queue, outside that lock.
type sink struct {
	stream  *Stream
	handler Handler
	in      *fsm.Machine[inboundState]
	queue   serial.Queue
	done    chan struct{}
	log     *zap.Logger
}

func newSink(s *Stream, h Handler, log *zap.Logger) *sink {
	return &sink{
		stream:  s,
		handler: h,
		in:      fsm.NewMachine(awaitingHeaders, inboundTransitions),
		done:    make(chan struct{}),
		log:     log,
	}
}

func (k *sink) finished() bool {
	return k.in.Current() == inboundDone
}

func (k *sink) OnHeaders(h headers.Headers, endStream bool) error {
	next := receivingData
	if endStream {
		next = inboundDone
	}

	return k.deliver("headers", next, func(from inboundState) error {
		if from != awaitingHeaders {
			return errNotAwaitingHeaders
		}

		return nil
	}, func() {
		if k.droppedAfterCancel("headers") {
			return
		}

		k.handler.OnResponseHeaders(headers.ResponseHeaders{Headers: h}, endStream)
	})
}

func (k *sink) OnData(data []byte, endStream bool) error {
	next := receivingData
	if endStream {
		next = inboundDone
	}

	return k.deliver("data", next, expectReceiving, func() {
		if k.droppedAfterCancel("data") {
			return
		}

		k.handler.OnResponseData(data, endStream)
	})
}

func (k *sink) OnTrailers(t headers.Headers) error {
	return k.deliver("trailers", inboundDone, expectReceiving, func() {
		if k.droppedAfterCancel("trailers") {
			return
		}

		k.handler.OnResponseTrailers(headers.ResponseTrailers{Headers: t})
	})
}

func (k *sink) OnCancel() error {
	return k.deliver("cancel", inboundDone, k.abort, k.handler.OnCancel)
}

func (k *sink) OnError(code int, message string, attemptCount int) error {
	return k.deliver("error", inboundDone, k.abort, func() {
		k.handler.OnError(&Error{
			Code:         code,
			Message:      message,
			AttemptCount: attemptCount,
		})
	})
}

// abort closes the outbound side of a stream the engine gave up on.
func (k *sink) abort(inboundState) error {
	k.stream.aborted.Store(true)

	return nil
}

func expectReceiving(from inboundState) error {
	if from != receivingData {
		return errNotReceiving
	}

	return nil
}

func (k *sink) deliver(event string, next inboundState, check func(from inboundState) error, dispatch func()) error {
	err := k.in.Do(next, func(from inboundState) error {
		if check != nil {
			if err := check(from); err != nil {
				return err
			}
		}

		k.queue.Push(func() {
			dispatch()

			if next == inboundDone {
				close(k.done)
			}
		})

		return nil
	})
	if err != nil {
		err = fmt.Errorf("%w: %s in state %s: %w", ErrProtocolViolation, event, k.in.Current(), err)
		k.log.Error("Rejected inbound event", zap.Error(err))

		return err
	}

	k.queue.Run()

	return nil
}

func (k *sink) droppedAfterCancel(event string) bool {
	if !k.stream.cancelled.Load() {
		return false
	}

	k.log.Debug("Dropping inbound event of cancelled stream", zap.String("event", event))

	return true
}
