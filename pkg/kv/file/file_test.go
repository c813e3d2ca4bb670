// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BlindspotSoftware/streambridge/pkg/kv"
	"github.com/BlindspotSoftware/streambridge/pkg/kv/kvtest"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		s, err := Open(filepath.Join(t.TempDir(), "kv.json"))
		if err != nil {
			t.Fatal(err)
		}

		return s
	})
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	s.Save("alt-svc|example.com:443", `h3=":443"; ma=86400`)
	s.Save("gone", "x")
	s.Remove("gone")

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if v, ok := reopened.Read("alt-svc|example.com:443"); !ok || v != `h3=":443"; ma=86400` {
		t.Errorf("Read() after reopen = %q, %v", v, ok)
	}

	if _, ok := reopened.Read("gone"); ok {
		t.Error("removed key survived reopen")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	if diff := cmp.Diff([]string{"kv.json"}, names); diff != "" {
		t.Errorf("temporary files left behind (-want +got):\n%s", diff)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Error("Open() of a corrupt file did not fail")
	}
}

func TestWriteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	s, err := Open(filepath.Join(t.TempDir(), "missing-dir", "kv.json"), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}

	s.Save("k", "v")

	if v, ok := s.Read("k"); !ok || v != "v" {
		t.Errorf("Read(k) = %q, %v; value must stay in memory", v, ok)
	}

	if logs.Len() != 1 {
		t.Errorf("logged %d entries, want 1", logs.Len())
	}
}
