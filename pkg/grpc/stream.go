// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package grpc layers gRPC message framing over bridge streams.
//
// Each message travels as a frame of one flag byte (always 0, compression
// is not supported), a big-endian uint32 length and the payload. Inbound
// frames may be split across data deliveries or packed into one; the
// decoder reassembles them. The call status arrives in the grpc-status and
// grpc-message trailers.
package grpc

import (
	"fmt"
	"sync"

	"github.com/BlindspotSoftware/streambridge/pkg/grpc/codec"
	"github.com/BlindspotSoftware/streambridge/pkg/headers"
	"github.com/BlindspotSoftware/streambridge/pkg/stream"
	"go.uber.org/zap"
)

// Handler receives the events of a gRPC stream.
//
// Calls never overlap. OnResponseHeaders comes first, then any number of
// OnMessage, then exactly one of OnResponseTrailers, OnCancel or OnError.
// OnError receives a *stream.Error for engine failures and a *FramingError
// when the response bytes do not decode.
type Handler interface {
	OnResponseHeaders(h headers.ResponseHeaders)
	OnMessage(msg []byte)
	OnResponseTrailers(t ResponseTrailers)
	OnCancel()
	OnError(err error)
}

// HandlerFuncs adapts plain functions to a Handler. Nil fields ignore the
// corresponding event.
type HandlerFuncs struct {
	Headers  func(h headers.ResponseHeaders)
	Message  func(msg []byte)
	Trailers func(t ResponseTrailers)
	Cancel   func()
	Error    func(err error)
}

func (f HandlerFuncs) OnResponseHeaders(h headers.ResponseHeaders) {
	if f.Headers != nil {
		f.Headers(h)
	}
}

func (f HandlerFuncs) OnMessage(msg []byte) {
	if f.Message != nil {
		f.Message(msg)
	}
}

func (f HandlerFuncs) OnResponseTrailers(t ResponseTrailers) {
	if f.Trailers != nil {
		f.Trailers(t)
	}
}

func (f HandlerFuncs) OnCancel() {
	if f.Cancel != nil {
		f.Cancel()
	}
}

func (f HandlerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// Client opens gRPC streams on a stream.Client.
type Client struct {
	streams        *stream.Client
	codec          codec.Codec
	maxMessageSize int
	log            *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCodec selects the message codec used by Send and Unmarshal and
// announced as content subtype. The default is proto.
func WithCodec(c codec.Codec) Option {
	return func(cl *Client) {
		cl.codec = c
	}
}

// WithMaxMessageSize limits the size of inbound messages.
func WithMaxMessageSize(n int) Option {
	return func(cl *Client) {
		cl.maxMessageSize = n
	}
}

// WithLogger sets the logger for framing failures.
func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) {
		cl.log = log
	}
}

// NewClient returns a Client on top of streams.
func NewClient(streams *stream.Client, opts ...Option) *Client {
	c := &Client{
		streams:        streams,
		codec:          codec.Proto(),
		maxMessageSize: DefaultMaxMessageSize,
		log:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewRequestHeadersBuilder returns request headers announcing the client's codec.
func (c *Client) NewRequestHeadersBuilder(scheme, authority, path string) *RequestHeadersBuilder {
	return NewRequestHeadersBuilder(scheme, authority, path).ContentSubtype(c.codec.Name())
}

// NewStream starts a gRPC stream whose response is delivered to h.
func (c *Client) NewStream(h Handler) (*Stream, error) {
	if h == nil {
		h = HandlerFuncs{}
	}

	d := &responseDecoder{
		handler: h,
		decoder: NewDecoder(c.maxMessageSize),
		log:     c.log,
	}

	underlying, err := c.streams.NewPrototype().WithHandler(d).Start()
	if err != nil {
		return nil, err
	}

	d.stream = underlying

	return &Stream{
		underlying: underlying,
		codec:      c.codec,
	}, nil
}

// Stream is the request side of a gRPC call.
type Stream struct {
	underlying *stream.Stream
	codec      codec.Codec
}

// SendHeaders sends the request headers. endStream is only set for calls
// without request messages.
func (s *Stream) SendHeaders(h headers.RequestHeaders, endStream bool) error {
	return s.underlying.SendHeaders(h, endStream)
}

// SendMessage frames payload and sends it as one data chunk.
func (s *Stream) SendMessage(payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}

	return s.underlying.SendData(frame)
}

// Send marshals v with the stream's codec and sends it.
func (s *Stream) Send(v any) error {
	payload, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", s.codec.Name(), err)
	}

	return s.SendMessage(payload)
}

// Unmarshal decodes a received message with the stream's codec.
func (s *Stream) Unmarshal(msg []byte, v any) error {
	if err := s.codec.Unmarshal(msg, v); err != nil {
		return fmt.Errorf("unmarshal %s message: %w", s.codec.Name(), err)
	}

	return nil
}

// Close half-closes the request with an empty final data frame.
func (s *Stream) Close() error {
	return s.underlying.Close(nil)
}

// Cancel aborts the call.
func (s *Stream) Cancel() error {
	return s.underlying.Cancel()
}

// Done is closed once the response finished.
func (s *Stream) Done() <-chan struct{} {
	return s.underlying.Done()
}

// responseDecoder turns the raw response of a stream into gRPC events.
// Its methods are serialized by the underlying stream.
type responseDecoder struct {
	handler Handler
	decoder *Decoder
	stream  *stream.Stream
	log     *zap.Logger

	mu     sync.Mutex
	failed bool
}

func (d *responseDecoder) OnResponseHeaders(h headers.ResponseHeaders, endStream bool) {
	d.handler.OnResponseHeaders(h)

	// A trailers-only response carries the status in the headers.
	if endStream {
		d.handler.OnResponseTrailers(ResponseTrailers{headers.ResponseTrailers{Headers: h.Headers}})
	}
}

func (d *responseDecoder) OnResponseData(data []byte, endStream bool) {
	if d.hasFailed() {
		return
	}

	msgs, err := d.decoder.Feed(data)
	for _, m := range msgs {
		d.handler.OnMessage(m)
	}

	if err != nil {
		d.fail(err)

		return
	}

	if endStream {
		if err := d.decoder.Finish(); err != nil {
			d.fail(err)

			return
		}

		d.fail(&FramingError{Reason: "stream ended without trailers"})
	}
}

func (d *responseDecoder) OnResponseTrailers(t headers.ResponseTrailers) {
	if d.hasFailed() {
		return
	}

	if err := d.decoder.Finish(); err != nil {
		d.fail(err)

		return
	}

	d.handler.OnResponseTrailers(ResponseTrailers{t})
}

func (d *responseDecoder) OnCancel() {
	if d.hasFailed() {
		return
	}

	d.handler.OnCancel()
}

func (d *responseDecoder) OnError(err *stream.Error) {
	if d.hasFailed() {
		return
	}

	d.handler.OnError(err)
}

func (d *responseDecoder) hasFailed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.failed
}

// fail delivers err as the final event and cancels the stream, so the
// engine stops sending. Whatever the engine delivers afterwards is dropped.
func (d *responseDecoder) fail(err error) {
	d.mu.Lock()
	d.failed = true
	d.mu.Unlock()

	d.log.Warn("Failing gRPC response", zap.Error(err))
	d.handler.OnError(err)

	if cerr := d.stream.Cancel(); cerr != nil {
		d.log.Debug("Cancel after framing error", zap.Error(cerr))
	}
}
