// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package output renders the results of bridge calls in different formats.
package output

import (
	"io"
	"os"
	"time"
)

// ContentType is an identifier for different kinds of formatted output.
type ContentType string

const (
	// TypeGeneral represents general text output.
	TypeGeneral ContentType = "general"

	// TypeHeaders represents response headers or trailers, as map[string][]string.
	TypeHeaders ContentType = "headers"

	// TypeMessage represents one response message.
	TypeMessage ContentType = "message"

	// TypeStatus represents the final status of a call, as Status.
	TypeStatus ContentType = "status"

	// TypeVersion represents version information.
	TypeVersion ContentType = "version"
)

// Content is a structured data unit to be formatted and displayed.
type Content struct {
	Type ContentType

	// Data is a string, []string, map[string][]string, Status or any value
	// the structured formats can marshal.
	Data any

	// IsError sends the content to standard error.
	IsError bool

	// Metadata describes the call the content belongs to. Known keys are
	// "server", "procedure" and "stream". Only shown in verbose mode.
	Metadata map[string]string
}

// Status is the outcome of a call.
type Status struct {
	Code    string `json:"code"              yaml:"code"`
	Number  int    `json:"number"            yaml:"number"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Formatter writes content in one output style.
type Formatter interface {
	// WriteContent formats and outputs a structured content object.
	WriteContent(content Content)

	// Write sends plain text to standard output.
	Write(text string)

	// WriteErr sends plain text to standard error.
	WriteErr(text string)
}

// Config contains the configuration options for output formatters.
type Config struct {
	Stdout io.Writer
	Stderr io.Writer

	// Format is text (default), json, yaml or oneline.
	Format string

	// Verbose adds call metadata to the output.
	Verbose bool

	// NoColor disables ANSI highlighting in text output.
	NoColor bool

	// Now stamps structured output. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}

	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return c
}

// New creates an appropriate output formatter based on the provided configuration.
//
//nolint:ireturn
func New(config Config) Formatter {
	config = config.withDefaults()

	switch config.Format {
	case "json":
		return newJSONFormatter(config)
	case "yaml":
		return newYAMLFormatter(config)
	case "csv", "oneline":
		return newOneLineFormatter(config)
	default:
		return newTextFormatter(config)
	}
}

func pick(stdout, stderr io.Writer, isErr bool) io.Writer {
	if isErr {
		return stderr
	}

	return stdout
}
