// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// OneLineFormatter writes every content as one comma separated line:
// timestamp, type, INFO or ERROR, verbose metadata as key=value, data.
type OneLineFormatter struct {
	config Config
}

const separator = ","

func newOneLineFormatter(config Config) *OneLineFormatter {
	return &OneLineFormatter{config: config}
}

// WriteContent formats and outputs structured content as a single line.
func (f *OneLineFormatter) WriteContent(content Content) {
	fields := []string{
		f.config.Now().UTC().Format(time.RFC3339),
		string(content.Type),
		"INFO",
	}

	if content.IsError {
		fields[2] = "ERROR"
	}

	if f.config.Verbose {
		for _, key := range slices.Sorted(maps.Keys(content.Metadata)) {
			fields = append(fields, key+"="+quote(content.Metadata[key]))
		}
	}

	fields = append(fields, formatData(content.Data))

	w := pick(f.config.Stdout, f.config.Stderr, content.IsError)
	fmt.Fprintln(w, strings.Join(fields, separator))
}

// Write sends text to standard output.
func (f *OneLineFormatter) Write(text string) {
	f.WriteContent(Content{Type: TypeGeneral, Data: text})
}

// WriteErr sends text to standard error.
func (f *OneLineFormatter) WriteErr(text string) {
	f.WriteContent(Content{Type: TypeGeneral, Data: text, IsError: true})
}

func formatData(data any) string {
	switch d := data.(type) {
	case string:
		return quote(d)
	case []byte:
		return quote(string(d))
	case []string:
		return quote(strings.Join(d, ";"))
	case map[string][]string:
		pairs := make([]string, 0, len(d))
		for _, name := range slices.Sorted(maps.Keys(d)) {
			pairs = append(pairs, name+"="+strings.Join(d[name], "|"))
		}

		return quote(strings.Join(pairs, ";"))
	case Status:
		return quote(strings.TrimSpace(fmt.Sprintf("%s(%d) %s", d.Code, d.Number, d.Message)))
	default:
		return quote(fmt.Sprintf("%v", d))
	}
}

// quote wraps values containing the separator, quotes or line breaks in
// double quotes, doubling inner quotes as CSV does.
func quote(s string) string {
	s = strings.TrimRight(s, "\n")
	if !strings.ContainsAny(s, separator+"\"\n\r") {
		return s
	}

	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
