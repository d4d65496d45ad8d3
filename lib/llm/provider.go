// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxTokens caps a reply when the request does not say.
const DefaultMaxTokens = 500

// ErrEmptyResponse is returned when the provider answered without any
// text.
var ErrEmptyResponse = errors.New("llm: response contained no text")

// Provider is the interface for language-model backends.
type Provider interface {
	// Complete sends a request and blocks until the full reply is
	// available.
	Complete(ctx context.Context, request Request) (*Response, error)
}

// Request is one single-turn completion.
type Request struct {
	// Model is the provider's model identifier. Empty selects the
	// provider's default.
	Model string

	// System is the system prompt.
	System string

	// Prompt is the user's message.
	Prompt string

	// MaxTokens defaults to DefaultMaxTokens.
	MaxTokens int64
}

func (r Request) maxTokens() int64 {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return DefaultMaxTokens
}

// Response is a completed reply.
type Response struct {
	Text  string
	Model string
}

// ProviderError is returned when the API responds with an error status.
type ProviderError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the provider's description of the failure.
	Message string
}

func (err *ProviderError) Error() string {
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited returns true if the error is a rate limit response (HTTP 429).
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == 429
}
