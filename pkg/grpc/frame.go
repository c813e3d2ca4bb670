// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grpc

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// HeaderSize is the length of the frame prefix: one flag byte and a
	// big-endian uint32 payload length.
	HeaderSize = 5

	// DefaultMaxMessageSize is the largest payload a Decoder accepts unless
	// configured otherwise.
	DefaultMaxMessageSize = 1<<24 - 1

	flagUncompressed byte = 0x00
	flagCompressed   byte = 0x01
)

// FramingError reports a byte stream that does not decode into messages.
type FramingError struct {
	Reason string
	// Buffered is the number of undecoded bytes at the time of the error.
	Buffered int
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("grpc framing error: %s (%d bytes buffered)", e.Reason, e.Buffered)
}

// EncodeFrame prefixes payload with an uncompressed frame header.
func EncodeFrame(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, &FramingError{Reason: fmt.Sprintf("message of %d bytes exceeds the frame length field", len(payload))}
	}

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = flagUncompressed
	binary.BigEndian.PutUint32(frame[1:HeaderSize], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// Decoder reassembles messages from data deliveries with arbitrary
// boundaries. The zero value is not usable; call NewDecoder.
type Decoder struct {
	buf            []byte
	maxMessageSize int
	err            error
}

// NewDecoder returns a Decoder rejecting payloads above maxMessageSize.
// A non-positive size selects DefaultMaxMessageSize.
func NewDecoder(maxMessageSize int) *Decoder {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}

	return &Decoder{maxMessageSize: maxMessageSize}
}

// Feed appends data and returns every message completed by it. After an
// error the decoder stays failed and returns the same error.
func (d *Decoder) Feed(data []byte) ([][]byte, error) {
	if d.err != nil {
		return nil, d.err
	}

	d.buf = append(d.buf, data...)

	var (
		msgs   [][]byte
		offset int
	)

	for len(d.buf)-offset >= HeaderSize {
		flag := d.buf[offset]
		length := binary.BigEndian.Uint32(d.buf[offset+1 : offset+HeaderSize])

		switch {
		case flag == flagCompressed:
			d.err = &FramingError{Reason: "compressed message without negotiated encoding", Buffered: len(d.buf) - offset}
		case flag != flagUncompressed:
			d.err = &FramingError{Reason: fmt.Sprintf("invalid frame flag 0x%02x", flag), Buffered: len(d.buf) - offset}
		case uint64(length) > uint64(d.maxMessageSize):
			d.err = &FramingError{
				Reason:   fmt.Sprintf("message of %d bytes exceeds limit of %d", length, d.maxMessageSize),
				Buffered: len(d.buf) - offset,
			}
		}

		if d.err != nil {
			d.buf = nil

			return msgs, d.err
		}

		end := offset + HeaderSize + int(length)
		if end > len(d.buf) {
			break
		}

		msg := make([]byte, length)
		copy(msg, d.buf[offset+HeaderSize:end])
		msgs = append(msgs, msg)
		offset = end
	}

	if offset > 0 {
		d.buf = append(d.buf[:0], d.buf[offset:]...)
	}

	return msgs, nil
}

// Buffered returns the number of bytes of an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Finish reports a partial frame left at the end of the stream.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}

	if len(d.buf) > 0 {
		return &FramingError{Reason: "stream ended inside a frame", Buffered: len(d.buf)}
	}

	return nil
}
