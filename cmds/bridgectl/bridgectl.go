// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// bridgectl performs gRPC calls through the streaming bridge.
// It is a small client for exercising a bridge engine against a real server.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BlindspotSoftware/streambridge/internal/buildinfo"
	"github.com/BlindspotSoftware/streambridge/internal/logging"
	"github.com/BlindspotSoftware/streambridge/internal/output"
	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// config is the merged result of the config file, BRIDGE_* environment
// variables and flags, in increasing precedence.
type config struct {
	Server   string        `mapstructure:"server"`
	Insecure bool          `mapstructure:"insecure"`
	CAFile   string        `mapstructure:"ca_file"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Codec    string        `mapstructure:"codec"`
	Format   string        `mapstructure:"format"`
	Verbose  bool          `mapstructure:"verbose"`
	NoColor  bool          `mapstructure:"no_color"`
	Log      logConfig     `mapstructure:"log"`
	Store    storeConfig   `mapstructure:"store"`
}

type logConfig struct {
	Level   string   `mapstructure:"level"`
	Format  string   `mapstructure:"format"`
	Outputs []string `mapstructure:"outputs"`
}

type application struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	v          *viper.Viper
	configFile string
	cfg        config

	formatter output.Formatter
	log       *zap.Logger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	app := &application{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		v:      viper.New(),
	}

	root := &cobra.Command{
		Use:   "bridgectl",
		Short: "Perform gRPC calls through the streaming bridge",
		Long: `bridgectl sends gRPC calls through the streaming bridge and its HTTP engine.

Settings are read from a YAML config file, BRIDGE_* environment variables
and flags, flags taking precedence. Example: BRIDGE_SERVER=localhost:8080`,
		SilenceUsage:      true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return app.setup() },
	}

	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "config file (default: ./bridgectl.yaml or ~/.bridgectl/bridgectl.yaml)")
	flags.StringP("server", "s", "localhost:8080", "address of the gRPC server, host:port")
	flags.Bool("insecure", false, "use HTTP/2 without TLS (h2c)")
	flags.String("ca-file", "", "PEM file with additional trusted certificates")
	flags.Duration("timeout", 0, "call deadline sent as grpc-timeout, 0 for none")
	flags.String("codec", "proto", "message codec, proto|json")
	flags.StringP("format", "f", "text", "output format, text|json|yaml|oneline")
	flags.BoolP("verbose", "v", false, "show headers and call metadata")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-level", "warn", "engine log level, trace|debug|info|warn|error|critical|off")
	flags.String("store", "none", "alt-svc cache store, none|memory|file|redis")
	flags.String("store-path", "", "file of the file store")
	flags.String("store-url", "", "Redis URL of the redis store, e.g. redis://localhost:6379/0")

	for key, flag := range map[string]string{
		"server":     "server",
		"insecure":   "insecure",
		"ca_file":    "ca-file",
		"timeout":    "timeout",
		"codec":      "codec",
		"format":     "format",
		"verbose":    "verbose",
		"no_color":   "no-color",
		"log.level":  "log-level",
		"store.kind": "store",
		"store.path": "store-path",
		"store.url":  "store-url",
	} {
		if err := app.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newCallCmd(app), newVersionCmd(app))

	return root
}

// setup loads the configuration and builds output and logging.
func (app *application) setup() error {
	v := app.v
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log.format", "console")
	v.SetDefault("log.outputs", []string{"stderr"})
	v.SetDefault("store.prefix", "bridgectl:")

	if app.configFile != "" {
		v.SetConfigFile(app.configFile)
	} else {
		v.SetConfigName("bridgectl")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.bridgectl")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&app.cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	level, err := engine.ParseLogLevel(app.cfg.Log.Level)
	if err != nil {
		return err
	}

	app.log, err = logging.New(logging.Config{
		Level:   level.ZapLevel(),
		Format:  app.cfg.Log.Format,
		Outputs: app.cfg.Log.Outputs,
	})
	if err != nil {
		return err
	}

	app.formatter = output.New(output.Config{
		Stdout:  app.stdout,
		Stderr:  app.stderr,
		Format:  app.cfg.Format,
		Verbose: app.cfg.Verbose,
		NoColor: app.cfg.NoColor,
	})

	return nil
}

func newVersionCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			app.formatter.WriteContent(output.Content{
				Type: output.TypeVersion,
				Data: buildinfo.VersionString(),
			})
		},
	}
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
