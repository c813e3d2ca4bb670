// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"fmt"

	"github.com/BlindspotSoftware/streambridge/internal/fsm"
	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"go.uber.org/zap"
)

// Client starts streams on an engine.
type Client struct {
	engine engine.Engine
	log    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for rejected calls and protocol violations.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient returns a Client backed by e.
func NewClient(e engine.Engine, opts ...Option) *Client {
	c := &Client{
		engine: e,
		log:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewPrototype returns a builder for a new stream.
func (c *Client) NewPrototype() *Prototype {
	return &Prototype{client: c}
}

// Prototype collects the settings of a stream before it is started.
type Prototype struct {
	client              *Client
	handler             Handler
	explicitFlowControl bool
}

// WithHandler sets the handler receiving the response. Without one, all
// inbound events are discarded.
func (p *Prototype) WithHandler(h Handler) *Prototype {
	p.handler = h

	return p
}

// WithExplicitFlowControl makes the engine wait for ReadData before each
// data callback.
func (p *Prototype) WithExplicitFlowControl(enabled bool) *Prototype {
	p.explicitFlowControl = enabled

	return p
}

// Start opens the stream on the engine.
func (p *Prototype) Start() (*Stream, error) {
	h := p.handler
	if h == nil {
		h = HandlerFuncs{}
	}

	s := &Stream{
		explicitFlowControl: p.explicitFlowControl,
		out:                 fsm.NewMachine(stateIdle, outboundTransitions),
		log:                 p.client.log,
	}
	s.sink = newSink(s, h, p.client.log)

	handle, err := p.client.engine.StartStream(s.sink, p.explicitFlowControl)
	if err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}

	s.handle = handle

	return s, nil
}
