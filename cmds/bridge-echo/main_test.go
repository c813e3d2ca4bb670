// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/BlindspotSoftware/streambridge/internal/echo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/http2"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// start serves cfg on a random local port until the test ends.
func start(t *testing.T, cfg config) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- serve(ctx, ln, cfg, zaptest.NewLogger(t), prometheus.NewRegistry())
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return ln.Addr().String()
}

func say(t *testing.T, client *http.Client, baseURL, msg string) string {
	t.Helper()

	c := connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](
		client, baseURL+echo.UnaryProcedure, connect.WithGRPC())

	resp, err := c.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(msg)))
	if err != nil {
		t.Fatalf("CallUnary() error = %v", err)
	}

	return resp.Msg.GetValue()
}

func h2cClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer

				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func TestServeInsecure(t *testing.T) {
	addr := start(t, config{Insecure: true, Prefix: "> ", MetricsPath: "/metrics"})

	if got := say(t, h2cClient(), "http://"+addr, "hello"); got != "> hello" {
		t.Errorf("Say() = %q, want %q", got, "> hello")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("metrics lack Go collector output:\n%s", body)
	}
}

func TestServeTLSGeneratesCertificate(t *testing.T) {
	dir := t.TempDir()
	cfg := config{
		CertFile: filepath.Join(dir, "echo.crt"),
		KeyFile:  filepath.Join(dir, "echo.key"),
	}

	addr := start(t, cfg)

	// The certificate is generated by the serving goroutine.
	var (
		pem []byte
		err error
	)

	for deadline := time.Now().Add(5 * time.Second); ; time.Sleep(10 * time.Millisecond) {
		if pem, err = os.ReadFile(cfg.KeyFile); err == nil {
			pem, err = os.ReadFile(cfg.CertFile)
		}

		if err == nil || time.Now().After(deadline) {
			break
		}
	}

	if err != nil {
		t.Fatalf("certificate not generated: %v", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		t.Fatal("generated certificate does not parse")
	}

	client := &http.Client{
		Transport: &http2.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS13},
		},
	}

	if got := say(t, client, "https://"+addr, "secure"); got != "secure" {
		t.Errorf("Say() = %q, want %q", got, "secure")
	}

	resp, err := client.Get("https://" + addr + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics status = %d, want 404 when disabled", resp.StatusCode)
	}
}

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "echo.yaml")
	doc := "listen: 127.0.0.1:9000\nprefix: 'p: '\nlog:\n  level: debug\n"

	if err := os.WriteFile(file, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BRIDGE_ECHO_INSECURE", "true")

	v := viper.New()

	cmd := newRootCmd(io.Discard, v)
	if err := cmd.ParseFlags([]string{"--metrics-path="}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(v, file)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Listen != "127.0.0.1:9000" || cfg.Prefix != "p: " || !cfg.Insecure || cfg.MetricsPath != "" {
		t.Errorf("loadConfig() = %+v", cfg)
	}

	if _, err := newLogger(cfg); err != nil {
		t.Errorf("newLogger() error = %v", err)
	}
}
