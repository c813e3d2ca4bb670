// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package headers

import (
	"slices"
	"strings"
)

// RequestMethod is an HTTP request method.
type RequestMethod string

const (
	MethodDelete  RequestMethod = "DELETE"
	MethodGet     RequestMethod = "GET"
	MethodHead    RequestMethod = "HEAD"
	MethodOptions RequestMethod = "OPTIONS"
	MethodPatch   RequestMethod = "PATCH"
	MethodPost    RequestMethod = "POST"
	MethodPut     RequestMethod = "PUT"
	MethodTrace   RequestMethod = "TRACE"
)

// Builder accumulates header entries and produces an immutable value of type T.
// A Builder may be reused after Build; later changes do not affect values
// that were already built.
type Builder[T any] struct {
	names  []string
	values map[string][]string
	wrap   func(Headers) T
}

// NewBuilderOf returns an empty builder producing T through wrap.
// It lets other packages define their own header flavours.
func NewBuilderOf[T any](wrap func(Headers) T) *Builder[T] {
	return &Builder[T]{
		values: make(map[string][]string),
		wrap:   wrap,
	}
}

// NewBuilder returns a builder for plain Headers.
func NewBuilder() *Builder[Headers] {
	return NewBuilderOf(func(h Headers) Headers { return h })
}

// NewRequestHeadersBuilder returns a builder preloaded with the request
// pseudo headers.
func NewRequestHeadersBuilder(method RequestMethod, scheme, authority, path string) *Builder[RequestHeaders] {
	b := NewBuilderOf(func(h Headers) RequestHeaders { return RequestHeaders{h} })
	b.Set(Method, string(method))
	b.Set(Scheme, scheme)
	b.Set(Authority, authority)
	b.Set(Path, path)

	return b
}

// NewResponseHeadersBuilder returns an empty response headers builder.
func NewResponseHeadersBuilder() *Builder[ResponseHeaders] {
	return NewBuilderOf(func(h Headers) ResponseHeaders { return ResponseHeaders{h} })
}

// NewRequestTrailersBuilder returns an empty request trailers builder.
func NewRequestTrailersBuilder() *Builder[RequestTrailers] {
	return NewBuilderOf(func(h Headers) RequestTrailers { return RequestTrailers{h} })
}

// NewResponseTrailersBuilder returns an empty response trailers builder.
func NewResponseTrailersBuilder() *Builder[ResponseTrailers] {
	return NewBuilderOf(func(h Headers) ResponseTrailers { return ResponseTrailers{h} })
}

// Add appends value to the values of name.
func (b *Builder[T]) Add(name, value string) *Builder[T] {
	name = strings.ToLower(name)
	if _, ok := b.values[name]; !ok {
		b.names = append(b.names, name)
	}

	b.values[name] = append(b.values[name], value)

	return b
}

// Set replaces all values of name. Setting no values removes the name.
func (b *Builder[T]) Set(name string, values ...string) *Builder[T] {
	if len(values) == 0 {
		return b.Remove(name)
	}

	name = strings.ToLower(name)
	if _, ok := b.values[name]; !ok {
		b.names = append(b.names, name)
	}

	b.values[name] = slices.Clone(values)

	return b
}

// Remove deletes name and all of its values.
func (b *Builder[T]) Remove(name string) *Builder[T] {
	name = strings.ToLower(name)
	if _, ok := b.values[name]; !ok {
		return b
	}

	delete(b.values, name)
	b.names = slices.DeleteFunc(b.names, func(n string) bool { return n == name })

	return b
}

// Build returns an immutable snapshot of the accumulated entries.
func (b *Builder[T]) Build() T {
	h := Headers{
		names:  slices.Clone(b.names),
		values: make(map[string][]string, len(b.values)),
	}

	for name, vals := range b.values {
		h.values[name] = slices.Clone(vals)
	}

	return b.wrap(h)
}
