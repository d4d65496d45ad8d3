// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when a request names no model.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// Anthropic implements [Provider] for the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
}

// NewAnthropic creates an Anthropic provider. Without options the
// client reads ANTHROPIC_API_KEY.
func NewAnthropic(options ...option.RequestOption) *Anthropic {
	client := anthropic.NewClient(options...)
	return &Anthropic{client: &client}
}

// Complete sends a non-streaming request and returns the reply. Text
// from every text block is concatenated.
func (provider *Anthropic) Complete(ctx context.Context, request Request) (*Response, error) {
	model := request.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: request.maxTokens(),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
	}
	if request.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: request.System}}
	}

	message, err := provider.client.Messages.New(ctx, params)
	if err != nil {
		var apiError *anthropic.Error
		if errors.As(err, &apiError) {
			return nil, &ProviderError{StatusCode: apiError.StatusCode, Message: apiError.Error()}
		}
		return nil, fmt.Errorf("llm/anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	return &Response{Text: text.String(), Model: string(message.Model)}, nil
}
