// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import (
	"github.com/fxamacker/cbor/v2"
)

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec using the core encoding profile.
//
//nolint:ireturn
func CBOR() Codec {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		// The options are static; failing here is a library bug.
		panic(err)
	}

	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}

	return cborCodec{enc: em, dec: dm}
}

func (cborCodec) Name() string { return "cbor" }

func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
