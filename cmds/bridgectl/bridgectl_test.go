// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BlindspotSoftware/streambridge/internal/echo"
	"github.com/BlindspotSoftware/streambridge/pkg/kv/file"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func echoAuthority(t *testing.T) string {
	t.Helper()

	return echoAuthorityWith(t, func(next http.Handler) http.Handler { return next })
}

func echoAuthorityWith(t *testing.T, wrap func(http.Handler) http.Handler) string {
	t.Helper()

	mux := http.NewServeMux()
	echo.New("echo: ").Register(mux)

	srv := httptest.NewServer(h2c.NewHandler(wrap(mux), &http2.Server{}))
	t.Cleanup(srv.Close)

	return strings.TrimPrefix(srv.URL, "http://")
}

func run(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := newRootCmd(stdin, &stdout, &stderr)
	root.SetArgs(args)

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

func TestCall(t *testing.T) {
	authority := echoAuthority(t)

	tests := []struct {
		name       string
		stdin      string
		args       []string
		wantStdout string
		wantStderr string
		wantErr    error
	}{
		{
			name:       "messages from arguments",
			args:       []string{"call", echo.Procedure, "one", "two"},
			wantStdout: "echo: one\necho: two\nstatus OK (0)\n",
		},
		{
			name:       "messages from stdin",
			stdin:      "alpha\nbeta\n",
			args:       []string{"call", echo.Procedure},
			wantStdout: "echo: alpha\necho: beta\nstatus OK (0)\n",
		},
		{
			name:       "json codec",
			args:       []string{"--codec", "json", "call", echo.Procedure, "x"},
			wantStdout: "echo: x\nstatus OK (0)\n",
		},
		{
			name:       "non-OK status",
			args:       []string{"call", echo.Procedure, "ok", "fail:bad input"},
			wantStdout: "echo: ok\n",
			wantStderr: "status INVALID_ARGUMENT (3): bad input\n",
			wantErr:    errCallFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--server", authority, "--insecure"}, tt.args...)

			stdout, stderr, err := run(t, strings.NewReader(tt.stdin), args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}

			if diff := cmp.Diff(tt.wantStdout, stdout); diff != "" {
				t.Errorf("stdout mismatch (-want +got):\n%s", diff)
			}

			if tt.wantStderr != "" && !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestCallUnknownCodec(t *testing.T) {
	_, _, err := run(t, strings.NewReader(""), "--codec", "xml", "call", echo.Procedure, "x")
	if err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("Execute() error = %v, want unknown codec", err)
	}
}

func TestCallUnreachable(t *testing.T) {
	_, _, err := run(t, strings.NewReader(""), "--server", "127.0.0.1:1", "--insecure", "call", echo.Procedure, "x")
	if !errors.Is(err, errCallFailed) {
		t.Errorf("Execute() error = %v, want %v", err, errCallFailed)
	}
}

func TestConfigFileAndEnvironment(t *testing.T) {
	authority := echoAuthority(t)

	cfgFile := filepath.Join(t.TempDir(), "bridgectl.yaml")
	doc := "server: " + authority + "\ninsecure: true\nformat: text\n"

	if err := os.WriteFile(cfgFile, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	// Environment overrides the config file.
	t.Setenv("BRIDGE_FORMAT", "json")

	stdout, _, err := run(t, strings.NewReader(""), "--config", cfgFile, "call", echo.Procedure, "from config")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var records []map[string]any

	dec := json.NewDecoder(strings.NewReader(stdout))
	for dec.More() {
		var r map[string]any
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("output is not a JSON stream: %v\n%s", err, stdout)
		}

		records = append(records, r)
	}

	var types []any
	for _, r := range records {
		types = append(types, r["contentType"])
	}

	if diff := cmp.Diff([]any{"message", "status"}, types); diff != "" {
		t.Errorf("record types mismatch (-want +got):\n%s", diff)
	}

	if got := records[0]["data"]; got != "echo: from config" {
		t.Errorf("message data = %v", got)
	}
}

func TestVerboseShowsHeaders(t *testing.T) {
	authority := echoAuthority(t)

	stdout, _, err := run(t, strings.NewReader(""),
		"--server", authority, "--insecure", "--verbose", "--no-color", "call", echo.Procedure, "v")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{":status: 200", "content-type: application/grpc", "echo: v", "# calling " + echo.Procedure} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout misses %q:\n%s", want, stdout)
		}
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, strings.NewReader(""), "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(stdout, "Version:") {
		t.Errorf("stdout = %q, want version information", stdout)
	}
}

func TestAltSvcStore(t *testing.T) {
	const advert = `h3=":443"; ma=3600`

	authority := echoAuthorityWith(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Alt-Svc", advert)
			next.ServeHTTP(w, r)
		})
	})

	path := filepath.Join(t.TempDir(), "altsvc.json")

	_, _, err := run(t, strings.NewReader(""),
		"--server", authority, "--insecure", "--store", "file", "--store-path", path, "call", echo.Procedure, "x")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	store, err := file.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	if got, ok := store.Read("alt-svc/" + authority); !ok || got != advert {
		t.Errorf("stored alt-svc = %q, %v; want %q", got, ok, advert)
	}
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		config  storeConfig
		wantNil bool
		wantErr bool
	}{
		{name: "none", config: storeConfig{}, wantNil: true},
		{name: "memory", config: storeConfig{Kind: "memory"}},
		{name: "file", config: storeConfig{Kind: "file", Path: filepath.Join(t.TempDir(), "kv.json")}},
		{name: "file without path", config: storeConfig{Kind: "file"}, wantErr: true},
		{name: "redis", config: storeConfig{Kind: "redis", URL: "redis://127.0.0.1:6379/0"}},
		{name: "redis with bad url", config: storeConfig{Kind: "redis", URL: "http://nowhere"}, wantErr: true},
		{name: "unknown kind", config: storeConfig{Kind: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := openStore(tt.config, zap.NewNop())
			defer closeStore()

			if (err != nil) != tt.wantErr {
				t.Fatalf("openStore() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				return
			}

			if (store == nil) != tt.wantNil {
				t.Errorf("openStore() store = %v, want nil %v", store, tt.wantNil)
			}
		})
	}
}
