// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when a request names no model.
const DefaultOpenAIModel = "gpt-4o"

// OpenAI implements [Provider] for the OpenAI Chat Completions API and
// anything compatible with it (Azure OpenAI, OpenRouter, vLLM, Ollama).
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI provider. Without options the client
// reads OPENAI_API_KEY and talks to api.openai.com; pass
// option.WithBaseURL to point it elsewhere.
func NewOpenAI(options ...option.RequestOption) *OpenAI {
	client := openai.NewClient(options...)
	return &OpenAI{client: &client}
}

// Complete sends a non-streaming request and returns the reply.
func (provider *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	model := request.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if request.System != "" {
		messages = append(messages, openai.SystemMessage(request.System))
	}
	messages = append(messages, openai.UserMessage(request.Prompt))

	completion, err := provider.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(request.maxTokens()),
	})
	if err != nil {
		var apiError *openai.Error
		if errors.As(err, &apiError) {
			return nil, &ProviderError{StatusCode: apiError.StatusCode, Message: apiError.Error()}
		}
		return nil, fmt.Errorf("llm/openai: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{
		Text:  completion.Choices[0].Message.Content,
		Model: completion.Model,
	}, nil
}
