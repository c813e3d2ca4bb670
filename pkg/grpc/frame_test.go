// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grpc

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{
			name:    "empty",
			payload: []byte{},
			want:    []byte{0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:    "hello",
			payload: []byte("hello"),
			want:    []byte{0x00, 0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'},
		},
		{
			name:    "length is big endian",
			payload: make([]byte, 0x0102),
			want:    append([]byte{0x00, 0x00, 0x00, 0x01, 0x02}, make([]byte, 0x0102)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeFrame(tt.payload)
			if err != nil {
				t.Fatalf("EncodeFrame() error = %v", err)
			}

			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeFrame() = %x, want %x", got, tt.want)
			}
		})
	}
}

// chunks splits data at pseudo-random boundaries, including empty chunks.
func chunks(data []byte, rng *rand.Rand, maxChunk int) [][]byte {
	var out [][]byte

	for len(data) > 0 {
		n := min(rng.IntN(maxChunk+1), len(data))
		out = append(out, data[:n])
		data = data[n:]
	}

	return out
}

func TestRoundTripIsChunkingIndependent(t *testing.T) {
	sizes := []int{0, 1, 1024, DefaultMaxMessageSize}

	for _, size := range sizes {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}

		frame, err := EncodeFrame(payload)
		if err != nil {
			t.Fatalf("EncodeFrame(%d bytes) error = %v", size, err)
		}

		for _, maxChunk := range []int{1, 3, 4096, 1 << 20} {
			if size == DefaultMaxMessageSize && maxChunk < 4096 {
				// Byte-sized chunks of 16 MiB only slow the test down.
				continue
			}

			rng := rand.New(rand.NewPCG(uint64(size), uint64(maxChunk)))
			d := NewDecoder(0)

			var got [][]byte

			for _, c := range chunks(frame, rng, maxChunk) {
				msgs, err := d.Feed(c)
				if err != nil {
					t.Fatalf("size %d chunk %d: Feed() error = %v", size, maxChunk, err)
				}

				got = append(got, msgs...)
			}

			if len(got) != 1 || !bytes.Equal(got[0], payload) {
				t.Fatalf("size %d chunk %d: decoded %d messages, payload equal = %v",
					size, maxChunk, len(got), len(got) == 1 && bytes.Equal(got[0], payload))
			}

			if err := d.Finish(); err != nil {
				t.Errorf("size %d chunk %d: Finish() error = %v", size, maxChunk, err)
			}
		}
	}
}

func TestDecodePackedFrames(t *testing.T) {
	var stream []byte

	want := []string{"a", "", "bcd", "efghij"}
	for _, m := range want {
		f, err := EncodeFrame([]byte(m))
		if err != nil {
			t.Fatal(err)
		}

		stream = append(stream, f...)
	}

	// Split in the middle of the third frame's header.
	split := 5 + 1 + 5 + 2

	d := NewDecoder(0)

	first, err := d.Feed(stream[:split])
	if err != nil {
		t.Fatal(err)
	}

	if d.Buffered() != 2 {
		t.Errorf("Buffered() = %d, want 2", d.Buffered())
	}

	rest, err := d.Feed(stream[split:])
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, m := range append(first, rest...) {
		got = append(got, string(m))
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderErrors(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		input []byte
	}{
		{
			name:  "compressed flag",
			input: []byte{0x01, 0x00, 0x00, 0x00, 0x01, 'x'},
		},
		{
			name:  "unknown flag",
			input: []byte{0x80, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:  "message above limit",
			max:   4,
			input: []byte{0x00, 0x00, 0x00, 0x00, 0x05},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.max)

			_, err := d.Feed(tt.input)

			var fe *FramingError
			if !errors.As(err, &fe) {
				t.Fatalf("Feed() error = %v, want *FramingError", err)
			}

			if _, again := d.Feed([]byte{0x00}); again != err {
				t.Errorf("decoder recovered after error: %v", again)
			}
		})
	}
}

func TestDecoderFinishReportsPartialFrame(t *testing.T) {
	d := NewDecoder(0)

	if _, err := d.Feed([]byte{0x00, 0x00, 0x00, 0x00, 0x04, 'a', 'b'}); err != nil {
		t.Fatal(err)
	}

	var fe *FramingError
	if err := d.Finish(); !errors.As(err, &fe) || fe.Buffered != 7 {
		t.Errorf("Finish() error = %v, want *FramingError with 7 bytes buffered", err)
	}
}
