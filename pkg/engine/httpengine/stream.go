// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/BlindspotSoftware/streambridge/internal/chanio"
	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"github.com/BlindspotSoftware/streambridge/pkg/headers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Error codes passed to Callbacks.OnError. The engine never retries, so the
// attempt count is always 1.
const (
	// CodeInvalidRequest reports request headers that do not form a URL.
	CodeInvalidRequest = 1
	// CodeRequestFailed reports a request that got no response.
	CodeRequestFailed = 2
	// CodeResponseFailed reports a response body that broke off.
	CodeResponseFailed = 3
)

// readChunkSize bounds a single data callback.
const readChunkSize = 32 << 10

var errMissingPseudoHeader = errors.New("missing pseudo header")

type outItem struct {
	data     []byte
	trailers *headers.Headers
	end      bool
}

// stream is the engine side of one HTTP exchange. The request body is fed by
// a writer goroutine from outbox; the response is delivered by a reader
// goroutine. Both run from SendHeaders until the exchange is over.
type stream struct {
	e        *Engine
	id       string
	cb       engine.Callbacks
	explicit bool
	log      *zap.Logger

	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc

	body     chan []byte
	trailer  http.Header
	writable chan struct{}
	readable chan struct{}

	mu       sync.Mutex
	started  bool
	outbox   []outItem
	ended    bool
	credits  []int
	finished bool

	// cbMu keeps callbacks from overlapping.
	cbMu sync.Mutex
}

var _ engine.StreamHandle = (*stream)(nil)

func newStream(e *Engine, id string, cb engine.Callbacks, explicit bool) *stream {
	ctx, cancel := context.WithCancel(e.ctx)

	return &stream{
		e:        e,
		id:       id,
		cb:       cb,
		explicit: explicit,
		log:      e.log.With(zap.String("stream", id)),
		ctx:      ctx,
		cancel:   cancel,
		body:     make(chan []byte),
		trailer:  make(http.Header),
		writable: make(chan struct{}, 1),
		readable: make(chan struct{}, 1),
	}
}

func (s *stream) SendHeaders(h headers.Headers, endStream bool) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.log.Debug("Ignoring headers", zap.String("reason", "already started or cancelled"))

		return
	}

	s.started = true
	s.ended = endStream
	s.mu.Unlock()

	client, cfg := s.e.httpClient()

	req, err := s.newRequest(h, endStream, cfg.UserAgent)
	if err != nil {
		s.log.Warn("Invalid request headers", zap.Error(err))
		go s.finish(func() error { return s.cb.OnError(CodeInvalidRequest, err.Error(), 1) })

		return
	}

	s.log.Debug("Sending request", zap.String("method", req.Method), zap.Stringer("url", req.URL))

	var g errgroup.Group

	if !endStream {
		g.Go(s.writeBody)
	}

	g.Go(func() error {
		return s.readResponse(client, req)
	})

	go func() {
		if err := g.Wait(); err != nil {
			s.log.Debug("Stream pumps stopped", zap.Error(err))
		}
	}()
}

func (s *stream) SendData(data []byte, endStream bool) {
	s.push(outItem{data: bytes.Clone(data), end: endStream})
}

func (s *stream) SendTrailers(t headers.Headers) {
	s.push(outItem{trailers: &t, end: true})
}

func (s *stream) ReadData(n int) {
	if !s.explicit {
		s.log.Debug("Ignoring read credit without explicit flow control")

		return
	}

	s.mu.Lock()
	s.credits = append(s.credits, n)
	s.mu.Unlock()

	signal(s.readable)
}

// Cancel aborts the exchange. A stream that never sent its headers has no
// reader to notice, so it is finished here.
func (s *stream) Cancel() {
	s.cancel()

	s.mu.Lock()
	started := s.started
	s.started = true
	s.mu.Unlock()

	if !started {
		go s.finish(s.cb.OnCancel)
	}
}

func (s *stream) push(item outItem) {
	s.mu.Lock()
	if !s.started || s.ended {
		s.mu.Unlock()
		s.log.Debug("Ignoring outbound data", zap.Bool("started", s.started))

		return
	}

	s.outbox = append(s.outbox, item)
	s.ended = item.end
	s.mu.Unlock()

	signal(s.writable)
}

func (s *stream) newRequest(h headers.Headers, endStream bool, userAgent string) (*http.Request, error) {
	method, _ := h.Value(headers.Method)
	if method == "" {
		method = http.MethodPost
	}

	var missing []string

	target := make([]string, 0, 3)

	for _, name := range []string{headers.Scheme, headers.Authority, headers.Path} {
		v, ok := h.Value(name)
		if !ok || v == "" {
			missing = append(missing, name)
		}

		target = append(target, v)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", errMissingPseudoHeader, strings.Join(missing, ", "))
	}

	var body io.Reader = http.NoBody

	if !endStream {
		r, err := chanio.NewReader(s.body)
		if err != nil {
			return nil, err
		}

		body = r
	}

	url := target[0] + "://" + target[1] + target[2]

	req, err := http.NewRequestWithContext(s.ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	h.Each(func(name string, values []string) {
		switch {
		case strings.HasPrefix(name, ":"), name == "host", name == "content-length", name == "connection":
			return
		}

		for _, v := range values {
			req.Header.Add(name, v)
		}
	})

	if req.Header.Get("User-Agent") == "" && userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	if !endStream {
		req.Trailer = s.trailer
	}

	return req, nil
}

// writeBody moves outbound data into the request body until the request
// ends or the stream is cancelled.
func (s *stream) writeBody() error {
	defer close(s.body)

	for {
		item, ok := s.nextOut()
		if !ok {
			return s.ctx.Err()
		}

		if len(item.data) > 0 {
			select {
			case s.body <- item.data:
			case <-s.ctx.Done():
				return s.ctx.Err()
			}
		}

		// The transport reads the trailers once the body is closed.
		if item.trailers != nil {
			item.trailers.Each(func(name string, values []string) {
				for _, v := range values {
					s.trailer.Add(name, v)
				}
			})
		}

		if item.end {
			return nil
		}
	}
}

func (s *stream) nextOut() (outItem, bool) {
	for {
		s.mu.Lock()
		if len(s.outbox) > 0 {
			item := s.outbox[0]
			s.outbox = s.outbox[1:]
			s.mu.Unlock()

			return item, true
		}
		s.mu.Unlock()

		select {
		case <-s.writable:
		case <-s.ctx.Done():
			return outItem{}, false
		}
	}
}

func (s *stream) readResponse(client *http.Client, req *http.Request) error {
	// Once the response is over the request has nothing left to say.
	defer s.cancel()

	resp, err := client.Do(req)
	if err != nil {
		return s.fail(CodeRequestFailed, err)
	}
	defer resp.Body.Close()

	s.e.rememberAltSvc(req.URL.Host, resp.Header.Get("Alt-Svc"))

	endStream := resp.ContentLength == 0 && len(resp.Trailer) == 0
	if endStream {
		s.finish(func() error { return s.cb.OnHeaders(responseHeaders(resp), true) })

		return nil
	}

	if !s.deliver(func() error { return s.cb.OnHeaders(responseHeaders(resp), false) }) {
		return nil
	}

	return s.pumpBody(resp)
}

// pumpBody delivers the response body. One chunk is read ahead of the
// credits, so the end of the body is seen as soon as the delivered bytes
// drain it and needs no further credit.
func (s *stream) pumpBody(resp *http.Response) error {
	var (
		buf     = make([]byte, readChunkSize)
		pending []byte
		eof     bool
	)

	for {
		if len(pending) == 0 {
			if eof {
				s.finishBody(resp)

				return nil
			}

			n, err := readSome(resp.Body, buf)
			pending = bytes.Clone(buf[:n])

			switch {
			case errors.Is(err, io.EOF):
				eof = true
			case err != nil:
				return s.fail(CodeResponseFailed, err)
			}

			continue
		}

		size := len(pending)

		if s.explicit {
			credit, ok := s.awaitCredit()
			if !ok {
				s.finish(s.cb.OnCancel)

				return s.ctx.Err()
			}

			size = min(credit, size)
		}

		chunk := pending[:size:size]
		pending = pending[size:]

		if size == 0 {
			continue
		}

		if !s.deliver(func() error { return s.cb.OnData(chunk, false) }) {
			return nil
		}
	}
}

// readSome reads until it got at least one byte or an error.
func readSome(r io.Reader, p []byte) (int, error) {
	for {
		n, err := r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (s *stream) finishBody(resp *http.Response) {
	trailers := headers.FromMap(resp.Trailer)
	if trailers.Len() > 0 {
		s.finish(func() error { return s.cb.OnTrailers(trailers) })

		return
	}

	s.finish(func() error { return s.cb.OnData(nil, true) })
}

// fail finishes the stream with an error, or with a cancel if the stream
// was cancelled, which also makes the transport fail.
func (s *stream) fail(code int, err error) error {
	if s.ctx.Err() != nil {
		s.finish(s.cb.OnCancel)

		return s.ctx.Err()
	}

	s.log.Info("Stream failed", zap.Int("code", code), zap.Error(err))
	s.finish(func() error { return s.cb.OnError(code, err.Error(), 1) })

	return err
}

func (s *stream) awaitCredit() (int, bool) {
	for {
		s.mu.Lock()
		if len(s.credits) > 0 {
			n := s.credits[0]
			s.credits = s.credits[1:]
			s.mu.Unlock()

			return n, true
		}
		s.mu.Unlock()

		select {
		case <-s.readable:
		case <-s.ctx.Done():
			return 0, false
		}
	}
}

// deliver runs a non-terminal callback. It reports false once the stream
// is finished.
func (s *stream) deliver(fn func() error) bool {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	if s.isFinished() {
		return false
	}

	if err := fn(); err != nil {
		s.log.Warn("Callback rejected event", zap.Error(err))
	}

	return true
}

// finish runs the terminal callback, at most once per stream.
func (s *stream) finish(fn func() error) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()

		return
	}

	s.finished = true
	s.mu.Unlock()

	if err := fn(); err != nil {
		s.log.Warn("Callback rejected event", zap.Error(err))
	}

	s.e.forget(s.id)
	s.log.Debug("Stream finished")
}

func (s *stream) isFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.finished
}

func responseHeaders(resp *http.Response) headers.Headers {
	b := headers.NewBuilder().Add(headers.Status, strconv.Itoa(resp.StatusCode))

	for _, name := range slices.Sorted(maps.Keys(resp.Header)) {
		for _, v := range resp.Header[name] {
			b.Add(name, v)
		}
	}

	return b.Build()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
