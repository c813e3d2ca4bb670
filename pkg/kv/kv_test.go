// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv_test

import (
	"testing"

	"github.com/BlindspotSoftware/streambridge/pkg/kv"
	"github.com/BlindspotSoftware/streambridge/pkg/kv/kvtest"
)

func TestMemory(t *testing.T) {
	kvtest.Run(t, func(*testing.T) kv.Store { return kv.NewMemory() })
}

func TestMemoryZeroValue(t *testing.T) {
	var m kv.Memory

	m.Remove("nothing")
	m.Save("k", "v")

	if v, ok := m.Read("k"); !ok || v != "v" {
		t.Errorf("Read(k) = %q, %v", v, ok)
	}
}
