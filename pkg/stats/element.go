// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats composes validated name segments into dotted series names and
// forwards counter increments to an engine.
package stats

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidElement is returned when a string is not a valid series segment.
var ErrInvalidElement = errors.New("invalid stats element")

var elementRegex = regexp.MustCompile(`^[A-Za-z_]+$`)

// Element is a single validated segment of a series name.
type Element struct {
	value string
}

// NewElement validates raw and returns it as an Element.
// Only ASCII letters and underscores are allowed.
func NewElement(raw string) (Element, error) {
	if !elementRegex.MatchString(raw) {
		return Element{}, fmt.Errorf("%w: %q must match %s", ErrInvalidElement, raw, elementRegex)
	}

	return Element{value: raw}, nil
}

// MustElement is like NewElement but panics on invalid input.
// It is meant for package-level series definitions.
func MustElement(raw string) Element {
	e, err := NewElement(raw)
	if err != nil {
		panic(err)
	}

	return e
}

// String returns the raw segment.
func (e Element) String() string {
	return e.value
}
