// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm is a small provider-agnostic layer over language-model
// chat APIs. A [Provider] turns a system prompt and one user message
// into a reply.
//
// Current provider implementations:
//   - [OpenAI]: Chat Completions via github.com/openai/openai-go
//   - [Anthropic]: the Messages API via github.com/anthropics/anthropic-sdk-go
//
// API keys come from the usual environment variables (OPENAI_API_KEY,
// ANTHROPIC_API_KEY) unless the caller passes request options.
package llm
