// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is Parley's binary encoding: CBOR with Core Deterministic
// Encoding (RFC 8949 section 4.2). The holding store keeps message
// metadata as CBOR blobs, so equal metadata always produces equal bytes
// and decoding yields the same map[string]any shapes that encoding/json
// would.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// Metadata maps are keyed by strings; decode nested maps the
		// way encoding/json does instead of map[any]any.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
