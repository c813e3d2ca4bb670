// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package echo implements a gRPC echo service used to exercise the bridge
// against a real server.
package echo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Procedure is the bidirectional streaming echo method.
const Procedure = "/streambridge.echo.v1.EchoService/Echo"

// UnaryProcedure answers a single message.
const UnaryProcedure = "/streambridge.echo.v1.EchoService/Say"

// TrailerCount carries the number of messages an Echo call answered.
const TrailerCount = "x-echo-count"

// Service echoes every message back, optionally with a prefix.
type Service struct {
	Prefix string

	log      *zap.Logger
	messages prometheus.Counter
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithRegisterer counts echoed messages in r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *Service) {
		r.MustRegister(s.messages)
	}
}

// New returns an echo service.
func New(prefix string, opts ...Option) *Service {
	s := &Service{
		Prefix: prefix,
		log:    zap.NewNop(),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streambridge",
			Subsystem: "echo",
			Name:      "messages_total",
			Help:      "Messages echoed back to clients.",
		}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register mounts both procedures on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.Handle(Procedure, connect.NewBidiStreamHandler(Procedure, s.Echo))
	mux.Handle(UnaryProcedure, connect.NewUnaryHandler(UnaryProcedure, s.Say))
}

// Echo answers every received message until the client half-closes.
// A message "fail:<text>" ends the call with an InvalidArgument status.
func (s *Service) Echo(
	ctx context.Context,
	stream *connect.BidiStream[wrapperspb.StringValue, wrapperspb.StringValue],
) error {
	s.log.Debug("Echo stream opened", zap.String("peer", stream.Peer().Addr))

	var count int

	for {
		msg, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			stream.ResponseTrailer().Set(TrailerCount, strconv.Itoa(count))

			return nil
		}

		if err != nil {
			return err
		}

		if reason, ok := strings.CutPrefix(msg.GetValue(), "fail:"); ok {
			return connect.NewError(connect.CodeInvalidArgument, errors.New(reason))
		}

		if err := stream.Send(wrapperspb.String(s.Prefix + msg.GetValue())); err != nil {
			return err
		}

		count++
		s.messages.Inc()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Say echoes one message.
func (s *Service) Say(
	_ context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	s.messages.Inc()

	return connect.NewResponse(wrapperspb.String(s.Prefix + req.Msg.GetValue())), nil
}
