// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grpc

import (
	"strconv"
	"time"

	"github.com/BlindspotSoftware/streambridge/pkg/headers"
)

// Header and trailer names defined by gRPC over HTTP/2.
const (
	HeaderContentType = "content-type"
	HeaderTE          = "te"
	HeaderTimeout     = "grpc-timeout"
	TrailerStatus     = "grpc-status"
	TrailerMessage    = "grpc-message"

	contentTypeGRPC = "application/grpc"
)

// ContentType returns the content type for a codec subtype. An empty subtype
// yields plain "application/grpc", which peers treat as proto.
func ContentType(subtype string) string {
	if subtype == "" {
		return contentTypeGRPC
	}

	return contentTypeGRPC + "+" + subtype
}

// RequestHeadersBuilder builds the request headers of a gRPC call.
type RequestHeadersBuilder struct {
	b *headers.Builder[headers.RequestHeaders]
}

// NewRequestHeadersBuilder starts a POST to path with the gRPC content type
// and "te: trailers" set.
func NewRequestHeadersBuilder(scheme, authority, path string) *RequestHeadersBuilder {
	b := headers.NewRequestHeadersBuilder(headers.MethodPost, scheme, authority, path).
		Set(HeaderContentType, contentTypeGRPC).
		Set(HeaderTE, "trailers")

	return &RequestHeadersBuilder{b: b}
}

// ContentSubtype announces the message codec, as in "application/grpc+json".
func (r *RequestHeadersBuilder) ContentSubtype(subtype string) *RequestHeadersBuilder {
	r.b.Set(HeaderContentType, ContentType(subtype))

	return r
}

// AddTimeout sets grpc-timeout. Non-positive durations encode as "0n".
func (r *RequestHeadersBuilder) AddTimeout(d time.Duration) *RequestHeadersBuilder {
	r.b.Set(HeaderTimeout, encodeTimeout(d))

	return r
}

// Add appends a custom metadata entry.
func (r *RequestHeadersBuilder) Add(name, value string) *RequestHeadersBuilder {
	r.b.Add(name, value)

	return r
}

// Build returns the headers.
func (r *RequestHeadersBuilder) Build() headers.RequestHeaders {
	return r.b.Build()
}

// maxTimeoutValue is the largest value grpc-timeout may carry: 8 digits.
const maxTimeoutValue = 1e8 - 1

//nolint:gochecknoglobals
var timeoutUnits = []struct {
	unit   time.Duration
	suffix string
}{
	{time.Nanosecond, "n"},
	{time.Microsecond, "u"},
	{time.Millisecond, "m"},
	{time.Second, "S"},
	{time.Minute, "M"},
	{time.Hour, "H"},
}

// encodeTimeout picks the finest unit the value fits into, rounding up so
// the peer never sees a shorter deadline than requested.
func encodeTimeout(d time.Duration) string {
	if d <= 0 {
		return "0n"
	}

	for _, u := range timeoutUnits {
		v := d / u.unit
		if d%u.unit > 0 {
			v++
		}

		if v <= maxTimeoutValue {
			return strconv.FormatInt(int64(v), 10) + u.suffix
		}
	}

	return strconv.FormatInt(maxTimeoutValue, 10) + "H"
}

// ResponseTrailers are trailers of a gRPC response with typed access to the
// status fields. A missing or malformed field reads as absent.
type ResponseTrailers struct {
	headers.ResponseTrailers
}

// GrpcStatus returns grpc-status as an integer.
func (t ResponseTrailers) GrpcStatus() (int, bool) {
	v, ok := t.Value(TrailerStatus)
	if !ok {
		return 0, false
	}

	code, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}

	return code, true
}

// GrpcMessage returns grpc-message as sent.
func (t ResponseTrailers) GrpcMessage() (string, bool) {
	return t.Value(TrailerMessage)
}

// Err returns a *StatusError for a non-OK status and nil otherwise. Missing
// status is reported as Unknown, as gRPC requires a status in trailers.
func (t ResponseTrailers) Err() error {
	code, ok := t.GrpcStatus()
	if !ok {
		return &StatusError{Code: Unknown, Message: "missing grpc-status"}
	}

	if Code(code) == OK {
		return nil
	}

	msg, _ := t.GrpcMessage()

	return &StatusError{Code: Code(code), Message: msg}
}

// ResponseTrailersBuilder builds gRPC response trailers.
type ResponseTrailersBuilder struct {
	b *headers.Builder[headers.ResponseTrailers]
}

// NewResponseTrailersBuilder returns an empty builder.
func NewResponseTrailersBuilder() *ResponseTrailersBuilder {
	return &ResponseTrailersBuilder{b: headers.NewResponseTrailersBuilder()}
}

// AddGrpcStatus sets grpc-status.
func (r *ResponseTrailersBuilder) AddGrpcStatus(code int) *ResponseTrailersBuilder {
	r.b.Set(TrailerStatus, strconv.Itoa(code))

	return r
}

// AddGrpcMessage sets grpc-message to msg unchanged.
func (r *ResponseTrailersBuilder) AddGrpcMessage(msg string) *ResponseTrailersBuilder {
	r.b.Set(TrailerMessage, msg)

	return r
}

// Add appends a custom trailer entry.
func (r *ResponseTrailersBuilder) Add(name, value string) *ResponseTrailersBuilder {
	r.b.Add(name, value)

	return r
}

// Build returns the trailers.
func (r *ResponseTrailersBuilder) Build() ResponseTrailers {
	return ResponseTrailers{r.b.Build()}
}
