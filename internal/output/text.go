// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// TextFormatter writes human readable output.
//
// In verbose mode a metadata line precedes content whenever the metadata
// differs from the one printed last.
type TextFormatter struct {
	config   Config
	lastMeta map[string]string
}

func newTextFormatter(config Config) *TextFormatter {
	return &TextFormatter{config: config}
}

// WriteContent formats and outputs structured content.
func (f *TextFormatter) WriteContent(content Content) {
	w := pick(f.config.Stdout, f.config.Stderr, content.IsError)

	f.writeMetadata(w, content.Metadata)

	switch data := content.Data.(type) {
	case map[string][]string:
		for _, name := range slices.Sorted(maps.Keys(data)) {
			for _, v := range data[name] {
				fmt.Fprintf(w, "%s: %s\n", name, v)
			}
		}
	case Status:
		if data.Message != "" {
			fmt.Fprintf(w, "status %s (%d): %s\n", data.Code, data.Number, data.Message)
		} else {
			fmt.Fprintf(w, "status %s (%d)\n", data.Code, data.Number)
		}
	case []string:
		for _, line := range data {
			fmt.Fprintln(w, line)
		}
	case []byte:
		writeLine(w, string(data))
	case string:
		writeLine(w, data)
	default:
		writeLine(w, fmt.Sprintf("%v", data))
	}
}

// Write sends text to standard output.
func (f *TextFormatter) Write(text string) {
	fmt.Fprint(f.config.Stdout, text)
}

// WriteErr sends text to standard error.
func (f *TextFormatter) WriteErr(text string) {
	fmt.Fprint(f.config.Stderr, text)
}

// writeLine terminates text with a newline unless it already ends with one.
func writeLine(w io.Writer, text string) {
	if strings.HasSuffix(text, "\n") {
		fmt.Fprint(w, text)
	} else {
		fmt.Fprintln(w, text)
	}
}

func (f *TextFormatter) writeMetadata(w io.Writer, meta map[string]string) {
	if !f.config.Verbose || len(meta) == 0 || maps.Equal(meta, f.lastMeta) {
		return
	}

	f.lastMeta = maps.Clone(meta)

	line := "# " + metadataText(meta)
	if !f.config.NoColor {
		// Inverted colors.
		line = "\033[7m" + line + "\033[0m"
	}

	fmt.Fprintln(w, line)
}

// metadataText describes a call from its known metadata keys, followed by
// all other keys in sorted order.
func metadataText(meta map[string]string) string {
	var parts []string

	if p, ok := meta["procedure"]; ok {
		parts = append(parts, "calling "+p)
	}

	if s, ok := meta["server"]; ok {
		parts = append(parts, "on "+s)
	}

	if id, ok := meta["stream"]; ok {
		parts = append(parts, fmt.Sprintf("(stream %s)", id))
	}

	for _, key := range slices.Sorted(maps.Keys(meta)) {
		switch key {
		case "procedure", "server", "stream":
			continue
		}

		parts = append(parts, fmt.Sprintf("%s=%s", key, meta[key]))
	}

	return strings.Join(parts, " ")
}
