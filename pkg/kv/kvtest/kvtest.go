// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kvtest checks that a kv.Store honors the store contract.
package kvtest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/BlindspotSoftware/streambridge/pkg/kv"
)

// Run exercises the contract on stores returned by newStore. Every subtest
// gets a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("missing key is absent", func(t *testing.T) {
		s := newStore(t)

		if v, ok := s.Read("missing"); ok {
			t.Errorf("Read(missing) = %q, true", v)
		}
	})

	t.Run("save then read", func(t *testing.T) {
		s := newStore(t)
		s.Save("k", "v")

		if v, ok := s.Read("k"); !ok || v != "v" {
			t.Errorf("Read(k) = %q, %v; want v, true", v, ok)
		}
	})

	t.Run("empty value is present", func(t *testing.T) {
		s := newStore(t)
		s.Save("k", "")

		if v, ok := s.Read("k"); !ok || v != "" {
			t.Errorf("Read(k) = %q, %v; want empty, true", v, ok)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		s := newStore(t)
		s.Save("k", "first")
		s.Save("k", "second")

		if v, _ := s.Read("k"); v != "second" {
			t.Errorf("Read(k) = %q, want second", v)
		}
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		s.Save("k", "v")
		s.Save("other", "x")
		s.Remove("k")
		s.Remove("never saved")

		if _, ok := s.Read("k"); ok {
			t.Error("Read(k) found a removed key")
		}

		if v, ok := s.Read("other"); !ok || v != "x" {
			t.Errorf("Read(other) = %q, %v; want x, true", v, ok)
		}
	})

	t.Run("concurrent use", func(t *testing.T) {
		s := newStore(t)

		var wg sync.WaitGroup

		for i := range 8 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				key := fmt.Sprintf("key-%d", i)
				for j := range 20 {
					s.Save(key, fmt.Sprint(j))
					s.Read(key)
				}
			}()
		}

		wg.Wait()

		for i := range 8 {
			if v, _ := s.Read(fmt.Sprintf("key-%d", i)); v != "19" {
				t.Errorf("key-%d = %q, want 19", i, v)
			}
		}
	})
}
