// Copyright 2025 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package template expands ${name} placeholders in configuration text.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrMissingValue is returned by Expand when a placeholder has no value.
var ErrMissingValue = errors.New("missing template value")

// placeholderRegex matches ${name} placeholders.
var placeholderRegex = regexp.MustCompile(`\$\{([a-zA-Z0-9_-]+)\}`)

// Template is a string with named placeholders.
type Template struct {
	raw          string
	placeholders []string
}

// Parse extracts the unique placeholders of raw, in order of appearance.
func Parse(raw string) *Template {
	matches := placeholderRegex.FindAllStringSubmatch(raw, -1)

	placeholders := make([]string, 0, len(matches))

	for _, match := range matches {
		if !slices.Contains(placeholders, match[1]) {
			placeholders = append(placeholders, match[1])
		}
	}

	return &Template{
		raw:          raw,
		placeholders: placeholders,
	}
}

// Placeholders returns the unique placeholder names.
func (t *Template) Placeholders() []string {
	return slices.Clone(t.placeholders)
}

// Expand substitutes every placeholder with its value. All placeholders must
// have a value; unused values are an error as well, since they usually point
// at a typo in either the template or the caller.
func (t *Template) Expand(values map[string]string) (string, error) {
	var missing []string

	for _, p := range t.placeholders {
		if _, ok := values[p]; !ok {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingValue, strings.Join(missing, ", "))
	}

	for name := range values {
		if !slices.Contains(t.placeholders, name) {
			return "", fmt.Errorf("unknown template value %q (placeholders: %s)",
				name, strings.Join(t.placeholders, ", "))
		}
	}

	return placeholderRegex.ReplaceAllStringFunc(t.raw, func(m string) string {
		return values[placeholderRegex.FindStringSubmatch(m)[1]]
	}), nil
}
