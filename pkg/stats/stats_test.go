// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"errors"
	"sync"
	"testing"

	"github.com/BlindspotSoftware/streambridge/internal/test/fakes"
	"github.com/google/go-cmp/cmp"
)

func TestNewElement(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "request", wantErr: false},
		{raw: "Request_Count", wantErr: false},
		{raw: "_", wantErr: false},
		{raw: "ABCxyz", wantErr: false},
		{raw: "", wantErr: true},
		{raw: "req1", wantErr: true},
		{raw: "a.b", wantErr: true},
		{raw: "with space", wantErr: true},
		{raw: "dash-ed", wantErr: true},
		{raw: "ümlaut", wantErr: true},
		{raw: "line\nbreak", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			e, err := NewElement(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewElement(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidElement) {
					t.Errorf("error %v does not wrap ErrInvalidElement", err)
				}

				return
			}

			if e.String() != tt.raw {
				t.Errorf("String() = %q, want %q", e.String(), tt.raw)
			}
		})
	}
}

func TestMustElementPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustElement did not panic on invalid input")
		}
	}()

	MustElement("bad.element")
}

func TestCounterIncrement(t *testing.T) {
	rec := &fakes.Recorder{}
	handle := NewHandle(rec)

	c := NewCounter(handle, MustElement("request"), MustElement("count"))
	if c.Series() != "request.count" {
		t.Fatalf("Series() = %q, want %q", c.Series(), "request.count")
	}

	c.IncrementBy(3)

	want := []fakes.CounterCall{{Series: "request.count", Count: 3}}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Fatalf("recorded calls mismatch (-want +got):\n%s", diff)
	}

	handle.Release()
	c.Increment()
	c.IncrementBy(5)

	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Errorf("increment after release reached the recorder (-want +got):\n%s", diff)
	}

	if handle.Live() {
		t.Error("handle still live after Release")
	}
}

func TestCounterWithoutHandle(t *testing.T) {
	c := NewCounter(nil, MustElement("orphan"))
	c.Increment()

	if c.Series() != "orphan" {
		t.Errorf("Series() = %q, want %q", c.Series(), "orphan")
	}
}

func TestCounterDoesNotAggregate(t *testing.T) {
	rec := &fakes.Recorder{}
	c := NewClient(NewHandle(rec)).Counter(MustElement("hits"))

	c.Increment()
	c.Increment()
	c.IncrementBy(0)

	want := []fakes.CounterCall{
		{Series: "hits", Count: 1},
		{Series: "hits", Count: 1},
		{Series: "hits", Count: 0},
	}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Errorf("recorded calls mismatch (-want +got):\n%s", diff)
	}
}

func TestReleaseRacesIncrement(t *testing.T) {
	rec := &fakes.Recorder{}
	handle := NewHandle(rec)
	c := NewCounter(handle, MustElement("race"))

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				c.Increment()
			}
		}()
	}

	handle.Release()
	wg.Wait()

	before := len(rec.Calls())
	c.Increment()

	if after := len(rec.Calls()); after != before {
		t.Errorf("increment after release recorded: before %d, after %d", before, after)
	}
}
