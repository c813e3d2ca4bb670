// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chanio provides a way to use a channel of byte slices as io.Reader.
package chanio

import (
	"errors"
	"io"
)

// ErrNilChannel is returned when creating a Reader without a channel.
var ErrNilChannel = errors.New("cannot create a Reader with a nil channel")

// Reader implements io.Reader on top of a channel of chunks.
// Closing the channel ends the stream with io.EOF.
//
// Use NewReader to obtain a new Reader.
type Reader struct {
	ch  <-chan []byte
	buf []byte // rest of the current chunk
}

// NewReader returns a new Reader reading from ch. The provided channel must not be nil.
func NewReader(ch <-chan []byte) (*Reader, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}

	return &Reader{ch: ch}, nil
}

// Read copies buffered bytes into p. With nothing buffered it blocks for the
// next chunk. Empty chunks are skipped. A single call never spans two chunks.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(r.buf) == 0 {
		chunk, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}

		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]

	return n, nil
}

// Close implements io.Closer. The channel belongs to the sender, so Close
// leaves it alone.
func (r *Reader) Close() error {
	return nil
}
