// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/relayclient"
	"github.com/parley-chat/parley/lib/wire"
)

// DefaultDialTimeout bounds connecting and logging in to the relay.
const DefaultDialTimeout = 10 * time.Second

// Config describes how a bot reaches the relay and the holding store.
type Config struct {
	// RelayAddr is the relay's TCP address.
	RelayAddr string

	// Handle is the bot's identity on the relay.
	Handle string

	// Store receives messages that cannot go through the relay.
	Store holdstore.Store

	// DialTimeout defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Session is a bot logged in to the relay.
type Session struct {
	conn   *relayclient.Conn
	store  holdstore.Store
	clock  clock.Clock
	logger *slog.Logger
}

// Handler processes one delivery from another user.
type Handler func(ctx context.Context, delivery wire.Delivery)

// Dial logs the bot in to the relay.
func Dial(ctx context.Context, config Config) (*Session, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("bot: Store is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	timeout := config.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := relayclient.Dial(dialCtx, config.RelayAddr, config.Handle)
	if err != nil {
		return nil, fmt.Errorf("bot: logging in as %q: %w", config.Handle, err)
	}

	logger := config.Logger.With("handle", config.Handle)
	logger.Info("bot connected", "relay", config.RelayAddr, "online", conn.Roster())
	return &Session{
		conn:   conn,
		store:  config.Store,
		clock:  config.Clock,
		logger: logger,
	}, nil
}

// Handle returns the bot's handle.
func (s *Session) Handle() string { return s.conn.Handle() }

// Now returns the bot's current time.
func (s *Session) Now() time.Time { return s.clock.Now() }

// Clock returns the clock the session stamps messages with.
func (s *Session) Clock() clock.Clock { return s.clock }

// Logger returns the session's logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Serve reads from the relay and calls handler for every delivery from
// another user, one at a time. Relay notices are logged and skipped.
// Serve returns nil once ctx is cancelled, and an error if the relay
// closes the connection first.
func (s *Session) Serve(ctx context.Context, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		delivery, err := s.conn.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("bot: relay connection lost: %w", err)
		}
		switch {
		case delivery.Kind == wire.KindSystem:
			s.logger.Debug("relay notice", "text", delivery.Body)
		case delivery.Sender == s.Handle():
		default:
			s.logger.Debug("delivery received",
				"sender", delivery.Sender,
				"kind", string(delivery.Kind),
				"stored", delivery.Stored,
			)
			handler(ctx, delivery)
		}
	}
}

// Send delivers body to destination through the relay. When the relay
// connection cannot take the line, the message is held in the store as
// kind instead.
func (s *Session) Send(ctx context.Context, destination, body string, kind wire.Kind) error {
	err := s.conn.Route(destination, body)
	if err == nil {
		return nil
	}
	s.logger.Warn("direct send failed, holding message",
		"destination", destination,
		"error", err,
	)
	return s.Hold(ctx, destination, body, kind, nil)
}

// Hold appends a message to the holding store. Messages with metadata
// must take this path; the relay's client protocol carries only text.
func (s *Session) Hold(ctx context.Context, destination, body string, kind wire.Kind, metadata map[string]any) error {
	message := wire.NewMessage(s.Handle(), destination, body, kind, metadata, s.clock.Now())
	if err := s.store.Append(ctx, message); err != nil {
		return fmt.Errorf("bot: holding message for %q: %w", destination, err)
	}
	return nil
}

// Close says goodbye to the relay and closes the connection.
func (s *Session) Close() error {
	return s.conn.Exit()
}
