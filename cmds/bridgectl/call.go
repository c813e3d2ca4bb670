// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BlindspotSoftware/streambridge/internal/fsm"
	"github.com/BlindspotSoftware/streambridge/internal/output"
	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"github.com/BlindspotSoftware/streambridge/pkg/engine/httpengine"
	"github.com/BlindspotSoftware/streambridge/pkg/grpc"
	"github.com/BlindspotSoftware/streambridge/pkg/grpc/codec"
	"github.com/BlindspotSoftware/streambridge/pkg/headers"
	"github.com/BlindspotSoftware/streambridge/pkg/stream"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var (
	errEngineStart = errors.New("engine did not start")
	errCallFailed  = errors.New("call failed")
)

func newCallCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "call <procedure> [messages...]",
		Short: "Send string messages on a gRPC call and print the responses",
		Long: `call opens a gRPC stream to procedure, for example /pkg.Service/Method,
sends every message as a google.protobuf.StringValue and prints the responses.
Without messages, each line read from standard input is sent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.call(cmd.Context(), args[0], args[1:])
		},
	}
}

// callArgs travels through the states of one call.
type callArgs struct {
	app       *application
	procedure string
	messages  []string

	engine     *httpengine.Engine
	closeStore func()
	client     *grpc.Client
	stream     *grpc.Stream

	// Set by the response handler before the stream is done.
	mu       sync.Mutex
	trailers *grpc.ResponseTrailers
	failure  error
}

func (app *application) call(ctx context.Context, procedure string, messages []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(messages) == 0 {
		lines, err := app.readLines()
		if err != nil {
			return err
		}

		messages = lines
	}

	args := &callArgs{
		app:       app,
		procedure: procedure,
		messages:  messages,
	}

	defer func() {
		if args.engine != nil {
			args.engine.Terminate()
		}

		if args.closeStore != nil {
			args.closeStore()
		}
	}()

	_, err := fsm.Run(ctx, args, startEngine)

	return err
}

func (app *application) readLines() ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(app.stdin)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	return lines, nil
}

func (a *callArgs) metadata() map[string]string {
	return map[string]string{
		"server":    a.app.cfg.Server,
		"procedure": a.procedure,
	}
}

func startEngine(_ context.Context, args *callArgs) (*callArgs, fsm.State[*callArgs], error) {
	cfg := args.app.cfg

	c, err := codec.NewRegistry().Lookup(cfg.Codec)
	if err != nil {
		return args, nil, err
	}

	level, err := engine.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return args, nil, err
	}

	store, closeStore, err := openStore(cfg.Store, args.app.log)
	if err != nil {
		return args, nil, err
	}

	args.closeStore = closeStore

	ecfg := engine.DefaultConfig()
	ecfg.Insecure = cfg.Insecure
	ecfg.CAFile = cfg.CAFile
	ecfg.UserAgent = "bridgectl"
	ecfg.AltSvcCache = store != nil

	opts := []httpengine.Option{httpengine.WithLogger(args.app.log)}
	if store != nil {
		opts = append(opts, httpengine.WithKeyValueStore(store))
	}

	args.engine = httpengine.New(opts...)
	if status := args.engine.RunWithConfig(ecfg, level); status != engine.StatusSuccess {
		return args, nil, fmt.Errorf("%w: %v", errEngineStart, status)
	}

	args.client = grpc.NewClient(
		stream.NewClient(args.engine, stream.WithLogger(args.app.log)),
		grpc.WithCodec(c),
		grpc.WithLogger(args.app.log),
	)

	return args, openStream, nil
}

func openStream(_ context.Context, args *callArgs) (*callArgs, fsm.State[*callArgs], error) {
	s, err := args.client.NewStream(grpc.HandlerFuncs{
		Headers: func(h headers.ResponseHeaders) {
			if args.app.cfg.Verbose {
				args.app.formatter.WriteContent(output.Content{
					Type:     output.TypeHeaders,
					Data:     h.Map(),
					Metadata: args.metadata(),
				})
			}
		},
		Message: args.printMessage,
		Trailers: func(t grpc.ResponseTrailers) {
			args.mu.Lock()
			args.trailers = &t
			args.mu.Unlock()
		},
		Cancel: func() {
			args.mu.Lock()
			args.failure = context.Canceled
			args.mu.Unlock()
		},
		Error: func(err error) {
			args.mu.Lock()
			args.failure = err
			args.mu.Unlock()
		},
	})
	if err != nil {
		return args, nil, err
	}

	args.stream = s

	return args, sendRequest, nil
}

func (a *callArgs) printMessage(msg []byte) {
	var v wrapperspb.StringValue
	if err := a.stream.Unmarshal(msg, &v); err != nil {
		a.app.log.Warn("Undecodable response message", zap.Error(err), zap.Int("bytes", len(msg)))
		a.app.formatter.WriteContent(output.Content{
			Type:     output.TypeMessage,
			Data:     fmt.Sprintf("%x", msg),
			IsError:  true,
			Metadata: a.metadata(),
		})

		return
	}

	a.app.formatter.WriteContent(output.Content{
		Type:     output.TypeMessage,
		Data:     v.GetValue(),
		Metadata: a.metadata(),
	})
}

func sendRequest(_ context.Context, args *callArgs) (*callArgs, fsm.State[*callArgs], error) {
	cfg := args.app.cfg

	b := args.client.NewRequestHeadersBuilder(scheme(cfg.Insecure), cfg.Server, args.procedure)
	if cfg.Timeout > 0 {
		b.AddTimeout(cfg.Timeout)
	}

	err := args.stream.SendHeaders(b.Build(), false)

	for _, m := range args.messages {
		if err != nil {
			break
		}

		err = args.stream.Send(wrapperspb.String(m))
	}

	if err == nil {
		err = args.stream.Close()
	}

	// A stream the engine already ended refuses sends; its outcome is
	// reported by awaitResponse.
	if err != nil {
		if !errors.Is(err, stream.ErrIllegalState) {
			return args, nil, err
		}

		if cerr := args.stream.Cancel(); cerr != nil {
			args.app.log.Debug("Cancel refused call", zap.Error(cerr))
		}
	}

	return args, awaitResponse, nil
}

func awaitResponse(ctx context.Context, args *callArgs) (*callArgs, fsm.State[*callArgs], error) {
	select {
	case <-args.stream.Done():
	case <-ctx.Done():
		if err := args.stream.Cancel(); err != nil {
			args.app.log.Debug("Cancel call", zap.Error(err))
		}

		<-args.stream.Done()

		return args, nil, ctx.Err()
	}

	args.mu.Lock()
	defer args.mu.Unlock()

	if args.failure != nil {
		args.app.formatter.WriteContent(output.Content{
			Type:     output.TypeGeneral,
			Data:     args.failure.Error(),
			IsError:  true,
			Metadata: args.metadata(),
		})

		return args, nil, fmt.Errorf("%w: %w", errCallFailed, args.failure)
	}

	if args.trailers == nil {
		return args, nil, fmt.Errorf("%w: response ended without status", errCallFailed)
	}

	status := callStatus(*args.trailers)
	args.app.formatter.WriteContent(output.Content{
		Type:     output.TypeStatus,
		Data:     status,
		IsError:  status.Number != int(grpc.OK),
		Metadata: args.metadata(),
	})

	if err := args.trailers.Err(); err != nil {
		return args, nil, fmt.Errorf("%w: %w", errCallFailed, err)
	}

	return args, nil, nil
}

func callStatus(t grpc.ResponseTrailers) output.Status {
	code := grpc.Unknown
	if n, ok := t.GrpcStatus(); ok {
		code = grpc.Code(n)
	}

	msg, _ := t.GrpcMessage()

	return output.Status{
		Code:    code.String(),
		Number:  int(code),
		Message: msg,
	}
}

func scheme(insecure bool) string {
	if insecure {
		return "http"
	}

	return "https"
}
