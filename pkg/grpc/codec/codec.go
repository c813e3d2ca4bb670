// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codec provides the message codecs of gRPC streams.
//
// A codec's name is the content subtype announced on the wire, as in
// "application/grpc+proto".
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownCodec is returned by Registry.Lookup for unregistered names.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec marshals messages.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content subtypes to codecs. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Codec
}

// NewRegistry returns a registry preloaded with the proto, json and cbor codecs.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Codec)}
	r.Register(Proto())
	r.Register(JSON())
	r.Register(CBOR())

	return r
}

// Register adds c, replacing a codec of the same name.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[c.Name()] = c
}

// Lookup returns the codec registered for name.
//
//nolint:ireturn
func (r *Registry) Lookup(name string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCodec, name)
	}

	return c, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
