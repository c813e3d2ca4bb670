// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BlindspotSoftware/streambridge/pkg/kv"
	"github.com/BlindspotSoftware/streambridge/pkg/kv/kvtest"
	"github.com/google/go-cmp/cmp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeClient is an in-memory Client. Err, if set, fails every command.
type fakeClient struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	Err  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return goredis.NewStringResult("", f.Err)
	}

	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}

	return goredis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return goredis.NewStatusResult("", f.Err)
	}

	s, _ := value.(string)
	f.data[key] = s
	f.ttls[key] = expiration

	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return goredis.NewIntResult(0, f.Err)
	}

	var n int64

	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)

			n++
		}
	}

	return goredis.NewIntResult(n, nil)
}

func TestContract(t *testing.T) {
	kvtest.Run(t, func(*testing.T) kv.Store { return New(newFakeClient()) })
}

func TestPrefixAndTTL(t *testing.T) {
	fc := newFakeClient()
	s := New(fc, WithPrefix("bridge:"), WithTTL(time.Hour))

	s.Save("k", "v")

	if diff := cmp.Diff(map[string]string{"bridge:k": "v"}, fc.data); diff != "" {
		t.Errorf("stored keys mismatch (-want +got):\n%s", diff)
	}

	if fc.ttls["bridge:k"] != time.Hour {
		t.Errorf("ttl = %v, want 1h", fc.ttls["bridge:k"])
	}
}

func TestFailuresAreAbsentAndLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fc := newFakeClient()
	s := New(fc, WithLogger(zap.New(core)))

	s.Save("k", "v")

	fc.Err = errors.New("connection refused")

	if _, ok := s.Read("k"); ok {
		t.Error("Read() reported a value while Redis fails")
	}

	s.Save("k", "w")
	s.Remove("k")

	if logs.Len() != 3 {
		t.Errorf("logged %d entries, want 3", logs.Len())
	}
}

func TestDialRejectsBadURL(t *testing.T) {
	if _, _, err := Dial("http://not-redis"); err == nil {
		t.Error("Dial() with a non-redis URL did not fail")
	}
}
