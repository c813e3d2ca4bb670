// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package headers provides the immutable header and trailer types exchanged
// between application code and the network engine.
//
// A Headers value is an ordered mapping from lower-cased header names to an
// ordered list of values. Values are built with a Builder and never change
// afterwards. The request and response flavours wrap the same representation
// but are distinct types, so response-shaped headers cannot be sent outbound.
package headers

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Pseudo header names used by HTTP/2.
const (
	Method    = ":method"
	Scheme    = ":scheme"
	Authority = ":authority"
	Path      = ":path"
	Status    = ":status"
)

// Headers is an immutable, ordered multi-map of header names to values.
// The zero value is an empty header set.
type Headers struct {
	names  []string
	values map[string][]string
}

// FromMap builds Headers from an unordered map such as http.Header.
// Names are lower-cased; since map iteration has no order, names are sorted
// to keep the result deterministic. Per-name value order is preserved.
func FromMap(m map[string][]string) Headers {
	b := NewBuilder()

	keys := slices.Sorted(maps.Keys(m))
	for _, k := range keys {
		for _, v := range m[k] {
			b.Add(k, v)
		}
	}

	return b.Build()
}

// Values returns a copy of the values stored for name, or nil.
func (h Headers) Values(name string) []string {
	vals, ok := h.values[strings.ToLower(name)]
	if !ok {
		return nil
	}

	return slices.Clone(vals)
}

// Value returns the first value stored for name.
func (h Headers) Value(name string) (string, bool) {
	vals := h.values[strings.ToLower(name)]
	if len(vals) == 0 {
		return "", false
	}

	return vals[0], true
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.values[strings.ToLower(name)]

	return ok
}

// Names returns the header names in insertion order.
func (h Headers) Names() []string {
	return slices.Clone(h.names)
}

// Len returns the number of distinct header names.
func (h Headers) Len() int {
	return len(h.names)
}

// Map returns a deep copy of the headers as a plain map.
func (h Headers) Map() map[string][]string {
	m := make(map[string][]string, len(h.names))
	for _, name := range h.names {
		m[name] = slices.Clone(h.values[name])
	}

	return m
}

// Each calls fn for every name in insertion order.
func (h Headers) Each(fn func(name string, values []string)) {
	for _, name := range h.names {
		fn(name, slices.Clone(h.values[name]))
	}
}

// RequestHeaders are the headers of an outbound request.
type RequestHeaders struct {
	Headers
}

// Method returns the :method pseudo header.
func (h RequestHeaders) Method() string {
	v, _ := h.Value(Method)

	return v
}

// Scheme returns the :scheme pseudo header.
func (h RequestHeaders) Scheme() string {
	v, _ := h.Value(Scheme)

	return v
}

// Authority returns the :authority pseudo header.
func (h RequestHeaders) Authority() string {
	v, _ := h.Value(Authority)

	return v
}

// Path returns the :path pseudo header.
func (h RequestHeaders) Path() string {
	v, _ := h.Value(Path)

	return v
}

// ResponseHeaders are the headers of an inbound response.
type ResponseHeaders struct {
	Headers
}

// HTTPStatus returns the parsed :status pseudo header. It reports false when
// the header is missing or not a number.
func (h ResponseHeaders) HTTPStatus() (int, bool) {
	v, ok := h.Value(Status)
	if !ok {
		return 0, false
	}

	code, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}

	return code, true
}

// RequestTrailers terminate the outbound direction of a stream.
type RequestTrailers struct {
	Headers
}

// ResponseTrailers terminate the inbound direction of a stream.
type ResponseTrailers struct {
	Headers
}
