// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// bridge-echo serves the echo gRPC service the bridge is tested against.
// It speaks HTTP/2 over TLS with a self-signed certificate by default, or
// h2c with --insecure, and exposes Prometheus metrics.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BlindspotSoftware/streambridge/internal/buildinfo"
	"github.com/BlindspotSoftware/streambridge/internal/echo"
	"github.com/BlindspotSoftware/streambridge/internal/logging"
	"github.com/BlindspotSoftware/streambridge/internal/tlsutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type config struct {
	Listen      string `mapstructure:"listen"`
	Prefix      string `mapstructure:"prefix"`
	Insecure    bool   `mapstructure:"insecure"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
	MetricsPath string `mapstructure:"metrics_path"`
	Log         struct {
		Level   string   `mapstructure:"level"`
		Format  string   `mapstructure:"format"`
		Outputs []string `mapstructure:"outputs"`
		File    struct {
			MaxSizeMB  int  `mapstructure:"max_size_mb"`
			MaxBackups int  `mapstructure:"max_backups"`
			MaxAgeDays int  `mapstructure:"max_age_days"`
			Compress   bool `mapstructure:"compress"`
		} `mapstructure:"file"`
	} `mapstructure:"log"`
}

func newRootCmd(stdout io.Writer, v *viper.Viper) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "bridge-echo",
		Short:        "Serve the echo gRPC service",
		Version:      buildinfo.Version(),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return err
			}

			return serve(ctx, ln, cfg, log, prometheus.NewRegistry())
		},
	}

	root.SetOut(stdout)

	flags := root.Flags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.StringP("listen", "l", "localhost:8080", "listen address, host:port")
	flags.String("prefix", "", "prefix added to every echoed message")
	flags.Bool("insecure", false, "serve h2c instead of TLS")
	flags.String("cert-file", "bridge-echo.crt", "TLS certificate, generated when missing")
	flags.String("key-file", "bridge-echo.key", "TLS key, generated when missing")
	flags.String("metrics-path", "/metrics", "path of the Prometheus endpoint, empty to disable")
	flags.String("log-level", "info", "log level, debug|info|warn|error")

	for key, flag := range map[string]string{
		"listen":       "listen",
		"prefix":       "prefix",
		"insecure":     "insecure",
		"cert_file":    "cert-file",
		"key_file":     "key-file",
		"metrics_path": "metrics-path",
		"log.level":    "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return root
}

func loadConfig(v *viper.Viper, file string) (config, error) {
	var cfg config

	v.SetConfigType("yaml")
	v.SetEnvPrefix("BRIDGE_ECHO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log.format", "json")
	v.SetDefault("log.outputs", []string{"stderr"})

	if file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	f := cfg.Log.File

	return logging.New(logging.Config{
		Level:   level,
		Format:  cfg.Log.Format,
		Outputs: cfg.Log.Outputs,
		Rotation: logging.Rotation{
			Enable:     f.MaxSizeMB > 0,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		},
	})
}

// newHandler mounts the echo service and, unless disabled, the metrics
// endpoint of reg.
func newHandler(cfg config, log *zap.Logger, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	echo.New(cfg.Prefix, echo.WithLogger(log), echo.WithRegisterer(reg)).Register(mux)

	if cfg.MetricsPath != "" {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	return mux
}

// serve runs the server on ln until ctx is done, then shuts it down.
func serve(ctx context.Context, ln net.Listener, cfg config, log *zap.Logger, reg *prometheus.Registry) error {
	handler := newHandler(cfg, log, reg)

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(log.Named("http")),
	}

	if cfg.Insecure {
		// Use h2c so we can serve HTTP/2 without TLS.
		srv.Handler = h2c.NewHandler(handler, &http2.Server{})
	} else {
		cert, err := tlsutil.LoadOrGenerateCert(cfg.CertFile, cfg.KeyFile, tlsutil.Options{Log: log})
		if err != nil {
			return err
		}

		srv.Handler = handler
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		}
	}

	log.Info("Serving echo service",
		zap.String("address", ln.Addr().String()),
		zap.Bool("insecure", cfg.Insecure),
		zap.String("procedure", echo.Procedure),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if cfg.Insecure {
			err = srv.Serve(ln)
		} else {
			err = srv.ServeTLS(ln, "", "")
		}

		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down")

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	if err := newRootCmd(os.Stdout, viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}
