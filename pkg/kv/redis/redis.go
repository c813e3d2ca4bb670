// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package redis provides a kv.Store backed by Redis.
//
// The store contract has no error returns: a failing Redis is logged, reads
// report the key as absent and writes are lost.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BlindspotSoftware/streambridge/pkg/kv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every Redis round trip.
const DefaultTimeout = 2 * time.Second

// Client is the part of a go-redis client the store uses. *redis.Client and
// *redis.ClusterClient satisfy it.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Store is a kv.Store in Redis.
type Store struct {
	client  Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	log     *zap.Logger
}

var _ kv.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces all keys, e.g. "streambridge:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires saved values. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithLogger sets the logger Redis failures are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New returns a store using client.
func New(client Client, opts ...Option) *Store {
	s := &Store{
		client:  client,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Dial connects to the Redis server at url, e.g. "redis://localhost:6379/0".
// The connection is established lazily by the first command.
func Dial(url string, opts ...Option) (*Store, *goredis.Client, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := goredis.NewClient(o)

	return New(client, opts...), client, nil
}

func (s *Store) Read(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+key).Result()

	switch {
	case errors.Is(err, goredis.Nil):
		return "", false
	case err != nil:
		s.log.Warn("Redis read failed", zap.String("key", key), zap.Error(err))

		return "", false
	}

	return v, true
}

func (s *Store) Save(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		s.log.Warn("Redis save failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.log.Warn("Redis remove failed", zap.String("key", key), zap.Error(err))
	}
}
