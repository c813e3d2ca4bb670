// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kv defines the key-value store the engine persists small values
// in, together with an in-memory implementation.
//
// Stores are last-write-wins and offer no transactions. A missing key is
// a normal condition and reported through the boolean of Read, never as an
// error. Backends that can fail log the failure and carry on.
package kv

import "sync"

// Store is a string key-value store.
type Store interface {
	Read(key string) (string, bool)
	Save(key, value string)
	Remove(key string)
}

// Memory is a Store held in memory. The zero value is ready to use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Read(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]

	return v, ok
}

func (m *Memory) Save(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.values == nil {
		m.values = make(map[string]string)
	}

	m.values[key] = value
}

func (m *Memory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
}
