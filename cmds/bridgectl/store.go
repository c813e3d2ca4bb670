// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	"github.com/BlindspotSoftware/streambridge/pkg/kv"
	"github.com/BlindspotSoftware/streambridge/pkg/kv/file"
	"github.com/BlindspotSoftware/streambridge/pkg/kv/redis"
	"go.uber.org/zap"
)

var errStoreConfig = errors.New("invalid store config")

// storeConfig selects where the engine keeps alt-svc advertisements.
type storeConfig struct {
	// Kind is none, memory, file or redis.
	Kind   string `mapstructure:"kind"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// openStore returns the configured store and a func releasing it. A nil
// store disables the alt-svc cache.
//
//nolint:ireturn
func openStore(c storeConfig, log *zap.Logger) (kv.Store, func(), error) {
	noop := func() {}

	switch c.Kind {
	case "", "none":
		return nil, noop, nil
	case "memory":
		return kv.NewMemory(), noop, nil
	case "file":
		if c.Path == "" {
			return nil, noop, fmt.Errorf("%w: file store needs a path", errStoreConfig)
		}

		s, err := file.Open(c.Path, file.WithLogger(log))
		if err != nil {
			return nil, noop, err
		}

		return s, noop, nil
	case "redis":
		if c.URL == "" {
			return nil, noop, fmt.Errorf("%w: redis store needs a url", errStoreConfig)
		}

		s, client, err := redis.Dial(c.URL, redis.WithPrefix(c.Prefix), redis.WithLogger(log))
		if err != nil {
			return nil, noop, err
		}

		return s, func() {
			if err := client.Close(); err != nil {
				log.Debug("Close Redis client", zap.Error(err))
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown kind %q", errStoreConfig, c.Kind)
	}
}
