// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package file provides a kv.Store persisted as a JSON document.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BlindspotSoftware/streambridge/pkg/kv"
	"go.uber.org/zap"
)

const fileMode = 0o600

// Store keeps all values in memory and rewrites the file on every change.
// The file is replaced atomically, so a crash leaves either the old or the
// new content.
type Store struct {
	path string
	log  *zap.Logger

	mu     sync.RWMutex
	values map[string]string
}

var _ kv.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger write failures are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// Open loads the store at path. A missing file is an empty store; it is
// created on the first write.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		log:    zap.NewNop(),
		values: make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read kv file: %w", err)
	}

	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse kv file %s: %w", path, err)
	}

	return s, nil
}

func (s *Store) Read(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// Save stores value. If the file cannot be written the value is kept in
// memory and the failure is logged.
func (s *Store) Save(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	s.persistLocked()
}

func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return
	}

	delete(s.values, key)
	s.persistLocked()
}

func (s *Store) persistLocked() {
	if err := s.writeLocked(); err != nil {
		s.log.Error("Persisting key-value store failed", zap.String("path", s.path), zap.Error(err))
	}
}

func (s *Store) writeLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return err
	}

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()

		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}
