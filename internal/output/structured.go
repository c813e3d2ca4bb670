// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Record is one item of structured output.
type Record struct {
	ContentType string            `json:"contentType"        yaml:"contentType"`
	Data        any               `json:"data"               yaml:"data"`
	Error       bool              `json:"error,omitempty"    yaml:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Timestamp   string            `json:"timestamp"          yaml:"timestamp"`
}

// structuredFormatter writes one marshaled Record per content.
type structuredFormatter struct {
	config  Config
	marshal func(r Record) ([]byte, error)
}

func newJSONFormatter(config Config) *structuredFormatter {
	return &structuredFormatter{
		config: config,
		marshal: func(r Record) ([]byte, error) {
			b, err := json.MarshalIndent(r, "", "  ")

			return append(b, '\n'), err
		},
	}
}

func newYAMLFormatter(config Config) *structuredFormatter {
	return &structuredFormatter{
		config: config,
		marshal: func(r Record) ([]byte, error) {
			b, err := yaml.Marshal(r)

			return append([]byte("---\n"), b...), err
		},
	}
}

func (f *structuredFormatter) WriteContent(content Content) {
	r := Record{
		ContentType: string(content.Type),
		Data:        content.Data,
		Error:       content.IsError,
		Timestamp:   f.config.Now().UTC().Format(time.RFC3339),
	}

	if f.config.Verbose && len(content.Metadata) > 0 {
		r.Metadata = content.Metadata
	}

	b, err := f.marshal(r)
	if err != nil {
		fmt.Fprintf(f.config.Stderr, "cannot format %s output: %v\n", content.Type, err)

		return
	}

	_, _ = pick(f.config.Stdout, f.config.Stderr, content.IsError).Write(b)
}

func (f *structuredFormatter) Write(text string) {
	f.WriteContent(Content{Type: TypeGeneral, Data: text})
}

func (f *structuredFormatter) WriteErr(text string) {
	f.WriteContent(Content{Type: TypeGeneral, Data: text, IsError: true})
}
