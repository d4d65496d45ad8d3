// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package responder is a relay participant that answers direct
// messages with a language model, in one of several personalities.
//
// Users message it:
//
//	help, info       describe the bot and the current personality
//	personality X    switch to personality X
//	rotate           switch to the next personality in the rotation
//	anything else    a model-generated reply
//
// Replies go straight through the relay. If the relay connection cannot
// take them they are held in the holding store: command replies as
// notifications, model replies as chat.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/parley-chat/parley/bot"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/llm"
	"github.com/parley-chat/parley/lib/wire"
)

const (
	// DefaultHandle is the responder's relay handle.
	DefaultHandle = "openai"

	// DefaultPersonality is the voice the responder starts in.
	DefaultPersonality = "happy"

	// DefaultRateLimit is the minimum interval between model requests.
	DefaultRateLimit = 100 * time.Millisecond

	// requestTimeout bounds a single model request.
	requestTimeout = 30 * time.Second
)

// Replies used when the model cannot answer.
const (
	ReplyUnavailable = "Sorry, I couldn't generate a response right now."
)

// Options configure a Responder. Zero values select the defaults.
type Options struct {
	// Model is passed to the provider. Empty selects the provider's
	// default model.
	Model string

	Personalities Personalities
	Personality   string
	RateLimit     time.Duration

	// MaxTokens caps each reply. Zero selects llm.DefaultMaxTokens.
	MaxTokens int64

	Clock  clock.Clock
	Logger *slog.Logger
}

// Responder answers messages with a language model.
type Responder struct {
	provider      llm.Provider
	model         string
	maxTokens     int64
	personalities Personalities
	rateLimit     time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	mu       sync.Mutex
	active   string
	lastCall time.Time
}

// New creates a Responder. It fails if the starting personality is not
// in the table.
func New(provider llm.Provider, options Options) (*Responder, error) {
	if provider == nil {
		return nil, fmt.Errorf("responder: provider is required")
	}
	if options.Personalities.Table == nil {
		options.Personalities = DefaultPersonalities()
	}
	if err := options.Personalities.Validate(); err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}
	if len(options.Personalities.Rotation) == 0 {
		options.Personalities.Rotation = options.Personalities.Names()
	}
	if options.Personality == "" {
		options.Personality = DefaultPersonality
	}
	if _, ok := options.Personalities.Table[options.Personality]; !ok {
		return nil, fmt.Errorf("responder: unknown personality %q (available: %s)",
			options.Personality, strings.Join(options.Personalities.Names(), ", "))
	}
	if options.RateLimit == 0 {
		options.RateLimit = DefaultRateLimit
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Responder{
		provider:      provider,
		model:         options.Model,
		maxTokens:     options.MaxTokens,
		personalities: options.Personalities,
		rateLimit:     options.RateLimit,
		clock:         options.Clock,
		logger:        options.Logger,
		active:        options.Personality,
	}, nil
}

// Personality returns the active personality's name.
func (r *Responder) Personality() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Run answers deliveries arriving on session until ctx is cancelled or
// the relay connection is lost.
func (r *Responder) Run(ctx context.Context, session *bot.Session) error {
	r.logger.Info("responder running",
		"handle", session.Handle(),
		"personality", r.Personality(),
		"model", r.model,
	)
	return session.Serve(ctx, func(ctx context.Context, delivery wire.Delivery) {
		reply, kind, ok := r.Respond(ctx, delivery.Body)
		if !ok {
			return
		}
		if err := session.Send(ctx, delivery.Sender, reply, kind); err != nil {
			r.logger.Warn("reply lost", "destination", delivery.Sender, "error", err)
		}
	})
}

// Respond computes the reply to one message. Command replies are
// notifications and model replies are chat. ok is false for messages
// that get no reply.
func (r *Responder) Respond(ctx context.Context, text string) (reply string, kind wire.Kind, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	command := strings.ToLower(text)

	switch {
	case command == "help" || command == "info":
		return r.help(), wire.KindNotification, true
	case strings.HasPrefix(command, "personality "):
		return r.switchTo(strings.TrimSpace(strings.TrimPrefix(command, "personality "))), wire.KindNotification, true
	case command == "rotate":
		return r.rotate(), wire.KindNotification, true
	}
	return r.generate(ctx, text), wire.KindChat, true
}

func (r *Responder) help() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return "Chatbot - I can respond in different personalities!\n" +
		"Commands:\n" +
		"- personality X: Change my personality to X (" + strings.Join(r.personalities.Names(), ", ") + ")\n" +
		"- rotate: Rotate to the next personality\n" +
		"- info or help: Show this help message\n" +
		"Current personality: " + r.active + " - " + r.personalities.Table[r.active].Description
}

func (r *Responder) switchTo(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	personality, ok := r.personalities.Table[name]
	if !ok {
		return fmt.Sprintf("Unknown personality: %s. Available: %s", name, strings.Join(r.personalities.Names(), ", "))
	}
	r.active = name
	r.logger.Info("personality changed", "personality", name)
	return fmt.Sprintf("Personality changed to %s - %s", name, personality.Description)
}

func (r *Responder) rotate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = r.personalities.next(r.active)
	r.logger.Info("personality rotated", "personality", r.active)
	return fmt.Sprintf("Rotated to %s - %s", r.active, r.personalities.Table[r.active].Description)
}

// generate asks the model for a reply in the active personality. Model
// failures become an apology rather than an error.
func (r *Responder) generate(ctx context.Context, text string) string {
	if err := r.waitTurn(ctx); err != nil {
		return ReplyUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	personality := r.personalities.Table[r.Personality()]
	response, err := r.provider.Complete(ctx, llm.Request{
		Model:     r.model,
		System:    personality.Prompt,
		Prompt:    text,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		r.logger.Warn("model request failed", "error", err)
		var providerError *llm.ProviderError
		if errors.As(err, &providerError) {
			return fmt.Sprintf("Sorry, I encountered an error (status %d)", providerError.StatusCode)
		}
		return ReplyUnavailable
	}
	r.logger.Debug("model replied", "model", response.Model, "length", len(response.Text))
	return response.Text
}

// waitTurn enforces the minimum interval between model requests.
func (r *Responder) waitTurn(ctx context.Context) error {
	r.mu.Lock()
	var wait time.Duration
	now := r.clock.Now()
	if !r.lastCall.IsZero() {
		wait = r.rateLimit - now.Sub(r.lastCall)
	}
	if wait < 0 {
		wait = 0
	}
	r.lastCall = now.Add(wait)
	r.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-r.clock.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
