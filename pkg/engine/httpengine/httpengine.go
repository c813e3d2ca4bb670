// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package httpengine implements the engine contract on top of net/http.
//
// Every stream is one HTTP/2 request. The request body is fed from the
// stream's outbound data and the response is delivered to the stream's
// callbacks as it arrives. Under explicit flow control the response body is
// only read after the application granted credit with ReadData.
package httpengine

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"github.com/BlindspotSoftware/streambridge/pkg/kv"
	"github.com/BlindspotSoftware/streambridge/pkg/stats"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrNotRunning is returned when starting a stream before the engine ran.
	ErrNotRunning = errors.New("engine not running")
	// ErrTerminated is returned when starting a stream after Terminate.
	ErrTerminated = errors.New("engine terminated")
)

// altSvcKeyPrefix namespaces alternate-protocol entries in the store.
const altSvcKeyPrefix = "alt-svc/"

// Engine is an engine.Engine sending streams over HTTP.
type Engine struct {
	log      *zap.Logger
	store    kv.Store
	counters *prometheus.CounterVec
	stats    *stats.Handle

	// injected is set by WithHTTPClient; RunWithYAML then keeps it.
	injected *http.Client

	mu         sync.Mutex
	client     *http.Client
	cfg        *engine.Config
	streams    map[string]*stream
	terminated bool

	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithHTTPClient makes the engine send with c instead of building a client
// from its configuration.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.injected = c
	}
}

// WithKeyValueStore sets the store alternate-protocol advertisements are
// kept in. The default is an in-memory store.
func WithKeyValueStore(s kv.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithRegisterer registers the engine's counters with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(e *Engine) {
		r.MustRegister(e.counters)
	}
}

// New returns an engine that sends streams once RunWithConfig or RunWithYAML
// succeeded.
func New(opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		log:   zap.NewNop(),
		store: kv.NewMemory(),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streambridge",
			Name:      "counter_total",
			Help:      "Counters recorded through the bridge, by series.",
		}, []string{"series"}),
		streams: make(map[string]*stream),
		ctx:     ctx,
		cancel:  cancel,
	}
	e.stats = stats.NewHandle(e)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RunWithConfig renders cfg and runs the engine with the result. A nil cfg
// selects the defaults.
func (e *Engine) RunWithConfig(cfg *engine.Config, level engine.LogLevel) engine.Status {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}

	doc, err := cfg.Render()
	if err != nil {
		e.log.Error("Invalid engine configuration", zap.Error(err))

		return engine.StatusFailure
	}

	return e.RunWithYAML(doc, level)
}

// RunWithYAML parses the configuration document and prepares the HTTP client.
// Running again replaces the configuration for streams started afterwards.
func (e *Engine) RunWithYAML(doc string, level engine.LogLevel) engine.Status {
	cfg, err := engine.ParseConfig(doc)
	if err != nil {
		e.log.Error("Invalid engine configuration", zap.Error(err))

		return engine.StatusFailure
	}

	client := e.injected
	if client == nil {
		client, err = newHTTPClient(cfg)
		if err != nil {
			e.log.Error("Cannot build HTTP client", zap.Error(err))

			return engine.StatusFailure
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		e.log.Error("Run after terminate")

		return engine.StatusFailure
	}

	e.client = client
	e.cfg = cfg
	e.log = e.log.WithOptions(zap.IncreaseLevel(level.ZapLevel()))

	e.log.Info("Engine running",
		zap.Bool("insecure", cfg.Insecure),
		zap.Stringer("level", level),
		zap.Bool("alt-svc-cache", cfg.AltSvcCache),
	)

	return engine.StatusSuccess
}

// StartStream opens a stream. No request is made before SendHeaders.
//
//nolint:ireturn
func (e *Engine) StartStream(cb engine.Callbacks, explicitFlowControl bool) (engine.StreamHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.terminated:
		return nil, ErrTerminated
	case e.client == nil:
		return nil, ErrNotRunning
	}

	id := uuid.NewString()
	s := newStream(e, id, cb, explicitFlowControl)
	e.streams[id] = s

	e.log.Debug("Stream started", zap.String("stream", id), zap.Bool("explicit-flow-control", explicitFlowControl))

	return s, nil
}

// RecordCounter adds count to the series counter. Counters only grow, so
// negative counts are dropped.
func (e *Engine) RecordCounter(series string, count int) {
	if count < 0 {
		e.log.Warn("Dropping negative counter increment", zap.String("series", series), zap.Int("count", count))

		return
	}

	e.counters.WithLabelValues(series).Add(float64(count))
}

// Terminate cancels every running stream and detaches counters. The engine
// cannot be run again.
func (e *Engine) Terminate() {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()

		return
	}

	e.terminated = true
	client := e.client
	streams := make([]*stream, 0, len(e.streams))

	for _, s := range e.streams {
		streams = append(streams, s)
	}
	e.mu.Unlock()

	e.stats.Release()
	e.cancel()

	for _, s := range streams {
		s.Cancel()
	}

	if client != nil {
		client.CloseIdleConnections()
	}

	e.log.Info("Engine terminated")
}

// Stats returns the handle counters use to reach this engine.
func (e *Engine) Stats() *stats.Handle {
	return e.stats
}

// AlternateProtocols returns the last alt-svc advertisement received from
// authority, if the alt-svc cache is enabled and one was seen.
func (e *Engine) AlternateProtocols(authority string) (string, bool) {
	return e.store.Read(altSvcKeyPrefix + authority)
}

func (e *Engine) rememberAltSvc(authority, value string) {
	e.mu.Lock()
	enabled := e.cfg != nil && e.cfg.AltSvcCache
	e.mu.Unlock()

	if !enabled || value == "" {
		return
	}

	key := altSvcKeyPrefix + authority

	if value == "clear" {
		e.store.Remove(key)

		return
	}

	e.store.Save(key, value)
}

func (e *Engine) httpClient() (*http.Client, *engine.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.client, e.cfg
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.streams, id)
}

// running returns the number of streams not finished yet.
func (e *Engine) running() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.streams)
}
