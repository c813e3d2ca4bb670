// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"fmt"

	"github.com/BlindspotSoftware/streambridge/pkg/headers"
)

// Handler receives the inbound events of a stream.
//
// Calls for one stream never overlap and arrive in protocol order: one
// OnResponseHeaders, any number of OnResponseData, then exactly one of
// OnResponseTrailers, OnCancel or OnError. A headers or data call with
// endStream set is the last call.
type Handler interface {
	OnResponseHeaders(h headers.ResponseHeaders, endStream bool)
	OnResponseData(data []byte, endStream bool)
	OnResponseTrailers(t headers.ResponseTrailers)
	OnCancel()
	OnError(err *Error)
}

// HandlerFuncs adapts plain functions to a Handler. Nil fields ignore the
// corresponding event.
type HandlerFuncs struct {
	Headers  func(h headers.ResponseHeaders, endStream bool)
	Data     func(data []byte, endStream bool)
	Trailers func(t headers.ResponseTrailers)
	Cancel   func()
	Error    func(err *Error)
}

func (f HandlerFuncs) OnResponseHeaders(h headers.ResponseHeaders, endStream bool) {
	if f.Headers != nil {
		f.Headers(h, endStream)
	}
}

func (f HandlerFuncs) OnResponseData(data []byte, endStream bool) {
	if f.Data != nil {
		f.Data(data, endStream)
	}
}

func (f HandlerFuncs) OnResponseTrailers(t headers.ResponseTrailers) {
	if f.Trailers != nil {
		f.Trailers(t)
	}
}

func (f HandlerFuncs) OnCancel() {
	if f.Cancel != nil {
		f.Cancel()
	}
}

func (f HandlerFuncs) OnError(err *Error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// Error is a transport or engine failure that ended a stream.
// The bridge does not retry; AttemptCount reports what the engine tried.
type Error struct {
	Code         int
	Message      string
	AttemptCount int
}

func (e *Error) Error() string {
	return fmt.Sprintf("stream error %d: %s (attempts: %d)", e.Code, e.Message, e.AttemptCount)
}
