// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds how much of an HTTP response body is read. A
// drain of a large backlog is the biggest legitimate response; the
// bound only exists so a broken server cannot exhaust memory.
const MaxResponseSize int64 = 64 << 20

// DecodeResponse reads at most MaxResponseSize bytes of body and
// JSON-decodes them into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody returns an error response body as a string for diagnostics.
// Read errors are ignored; a partial body is still worth reporting.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4<<10))
	return string(data)
}
