// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

var fixedNow = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func newTest(format string, verbose, noColor bool) (Formatter, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer

	f := New(Config{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Format:  format,
		Verbose: verbose,
		NoColor: noColor,
		Now:     fixedNow,
	})

	return f, &stdout, &stderr
}

func TestNewSelectsFormatter(t *testing.T) {
	tests := []struct {
		format string
		want   any
	}{
		{format: "", want: &TextFormatter{}},
		{format: "text", want: &TextFormatter{}},
		{format: "json", want: &structuredFormatter{}},
		{format: "yaml", want: &structuredFormatter{}},
		{format: "oneline", want: &OneLineFormatter{}},
		{format: "csv", want: &OneLineFormatter{}},
	}

	for _, tt := range tests {
		f, _, _ := newTest(tt.format, false, true)

		switch tt.want.(type) {
		case *TextFormatter:
			if _, ok := f.(*TextFormatter); !ok {
				t.Errorf("New(%q) = %T", tt.format, f)
			}
		case *structuredFormatter:
			if _, ok := f.(*structuredFormatter); !ok {
				t.Errorf("New(%q) = %T", tt.format, f)
			}
		case *OneLineFormatter:
			if _, ok := f.(*OneLineFormatter); !ok {
				t.Errorf("New(%q) = %T", tt.format, f)
			}
		}
	}
}

func TestText(t *testing.T) {
	meta := map[string]string{"server": "localhost:1024", "procedure": "/echo.Echo/Echo", "stream": "s1"}

	tests := []struct {
		name       string
		verbose    bool
		noColor    bool
		contents   []Content
		wantStdout string
		wantStderr string
	}{
		{
			name: "message gets a newline",
			contents: []Content{
				{Type: TypeMessage, Data: "hello"},
				{Type: TypeMessage, Data: []byte("world\n")},
			},
			wantStdout: "hello\nworld\n",
		},
		{
			name: "headers sorted by name",
			contents: []Content{
				{Type: TypeHeaders, Data: map[string][]string{"b": {"2", "3"}, "a": {"1"}}},
			},
			wantStdout: "a: 1\nb: 2\nb: 3\n",
		},
		{
			name: "status to stderr",
			contents: []Content{
				{Type: TypeStatus, Data: Status{Code: "NOT_FOUND", Number: 5, Message: "gone"}, IsError: true},
				{Type: TypeStatus, Data: Status{Code: "OK"}},
			},
			wantStdout: "status OK (0)\n",
			wantStderr: "status NOT_FOUND (5): gone\n",
		},
		{
			name:    "metadata printed once while unchanged",
			verbose: true,
			noColor: true,
			contents: []Content{
				{Type: TypeMessage, Data: "a", Metadata: meta},
				{Type: TypeMessage, Data: "b", Metadata: meta},
				{Type: TypeMessage, Data: "c", Metadata: map[string]string{"stream": "s2", "attempt": "2"}},
			},
			wantStdout: "# calling /echo.Echo/Echo on localhost:1024 (stream s1)\na\nb\n# (stream s2) attempt=2\nc\n",
		},
		{
			name:    "metadata inverted with color",
			verbose: true,
			contents: []Content{
				{Type: TypeGeneral, Data: []string{"x", "y"}, Metadata: map[string]string{"server": "h"}},
			},
			wantStdout: "\033[7m# on h\033[0m\nx\ny\n",
		},
		{
			name: "metadata hidden without verbose",
			contents: []Content{
				{Type: TypeGeneral, Data: 42, Metadata: meta},
			},
			wantStdout: "42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, stdout, stderr := newTest("text", tt.verbose, tt.noColor)

			for _, c := range tt.contents {
				f.WriteContent(c)
			}

			if diff := cmp.Diff(tt.wantStdout, stdout.String()); diff != "" {
				t.Errorf("stdout mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tt.wantStderr, stderr.String()); diff != "" {
				t.Errorf("stderr mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStructured(t *testing.T) {
	content := Content{
		Type:     TypeStatus,
		Data:     Status{Code: "UNAVAILABLE", Number: 14, Message: "down"},
		IsError:  true,
		Metadata: map[string]string{"server": "h"},
	}

	tests := []struct {
		format    string
		verbose   bool
		unmarshal func([]byte, any) error
		want      map[string]any
	}{
		{
			format:    "json",
			unmarshal: json.Unmarshal,
			want: map[string]any{
				"contentType": "status",
				"data":        map[string]any{"code": "UNAVAILABLE", "number": float64(14), "message": "down"},
				"error":       true,
				"timestamp":   "2026-01-02T03:04:05Z",
			},
		},
		{
			format:    "yaml",
			verbose:   true,
			unmarshal: yaml.Unmarshal,
			want: map[string]any{
				"contentType": "status",
				"data":        map[string]any{"code": "UNAVAILABLE", "number": 14, "message": "down"},
				"error":       true,
				"metadata":    map[string]any{"server": "h"},
				"timestamp":   "2026-01-02T03:04:05Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, stdout, stderr := newTest(tt.format, tt.verbose, true)
			f.WriteContent(content)

			if stdout.Len() != 0 {
				t.Errorf("error content written to stdout: %q", stdout)
			}

			var got map[string]any
			if err := tt.unmarshal(stderr.Bytes(), &got); err != nil {
				t.Fatalf("output does not parse: %v\n%s", err, stderr)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStructuredWrite(t *testing.T) {
	f, stdout, _ := newTest("json", false, true)
	f.Write("plain")

	var r Record
	if err := json.Unmarshal(stdout.Bytes(), &r); err != nil {
		t.Fatal(err)
	}

	if r.ContentType != string(TypeGeneral) || r.Data != "plain" {
		t.Errorf("Write() produced %+v", r)
	}
}

func TestOneLine(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		content Content
		want    string
	}{
		{
			name:    "message",
			content: Content{Type: TypeMessage, Data: "hello"},
			want:    "2026-01-02T03:04:05Z,message,INFO,hello\n",
		},
		{
			name:    "quoted data",
			content: Content{Type: TypeMessage, Data: `a,"b"`},
			want:    "2026-01-02T03:04:05Z,message,INFO,\"a,\"\"b\"\"\"\n",
		},
		{
			name:    "headers",
			content: Content{Type: TypeHeaders, Data: map[string][]string{"b": {"2", "3"}, "a": {"1"}}},
			want:    "2026-01-02T03:04:05Z,headers,INFO,a=1;b=2|3\n",
		},
		{
			name:    "status with metadata",
			verbose: true,
			content: Content{Type: TypeStatus, Data: Status{Code: "OK"}, Metadata: map[string]string{"stream": "s1", "server": "h"}},
			want:    "2026-01-02T03:04:05Z,status,INFO,server=h,stream=s1,OK(0)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, stdout, _ := newTest("oneline", tt.verbose, true)
			f.WriteContent(tt.content)

			if diff := cmp.Diff(tt.want, stdout.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}

	f, _, stderr := newTest("oneline", false, true)
	f.WriteErr("boom")

	if want := "2026-01-02T03:04:05Z,general,ERROR,boom\n"; stderr.String() != want {
		t.Errorf("WriteErr() = %q, want %q", stderr.String(), want)
	}
}
