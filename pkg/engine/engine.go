// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine defines the contract between the bridge and a network
// engine. The bridge depends on nothing but these interfaces, so a real
// engine and the mock engine are interchangeable.
package engine

import (
	"github.com/BlindspotSoftware/streambridge/pkg/headers"
)

// Status is the result code of engine lifecycle calls.
type Status int

const (
	StatusSuccess Status = 0
	StatusFailure Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Engine is a network engine able to run streams.
type Engine interface {
	// StartStream opens a new stream whose inbound events are delivered to cb.
	// explicitFlowControl is fixed for the lifetime of the stream.
	StartStream(cb Callbacks, explicitFlowControl bool) (StreamHandle, error)
	// RunWithConfig starts the engine from a configuration object.
	RunWithConfig(cfg *Config, level LogLevel) Status
	// RunWithYAML starts the engine from raw configuration YAML.
	RunWithYAML(yaml string, level LogLevel) Status
	// RecordCounter adds count to the counter series. Aggregation is up to
	// the engine.
	RecordCounter(series string, count int)
	// Terminate stops the engine. Streams still running are cancelled.
	Terminate()
}

// StreamHandle is the engine side of one stream. Calls never block on I/O.
type StreamHandle interface {
	SendHeaders(h headers.Headers, endStream bool)
	SendData(data []byte, endStream bool)
	SendTrailers(t headers.Headers)
	// ReadData allows the engine to deliver one more data callback of at
	// most n bytes. Only meaningful under explicit flow control.
	ReadData(n int)
	Cancel()
}

// Callbacks receives the inbound events of one stream.
//
// An implementation returns a non-nil error when the engine delivers an event
// that breaks the inbound ordering contract: exactly one headers event, any
// number of data events, then exactly one terminal event. A headers or data
// event with endStream set is terminal by itself.
type Callbacks interface {
	OnHeaders(h headers.Headers, endStream bool) error
	OnData(data []byte, endStream bool) error
	OnTrailers(t headers.Headers) error
	OnCancel() error
	OnError(code int, message string, attemptCount int) error
}
