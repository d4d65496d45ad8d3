// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package weather is a simulated thermometer that lives on the relay.
// Users message it commands:
//
//	subscribe    receive a temperature update every broadcast interval
//	unsubscribe  stop receiving updates
//	range        receive five recent readings at once
//	reboot       restart the sensor (takes RebootDelay)
//
// Commands are case-insensitive. Every reply is a notification held in
// the holding store with its readings as metadata, so users collect
// them with !check or at their next login.
package weather

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parley-chat/parley/bot"
	"github.com/parley-chat/parley/lib/wire"
)

const (
	// DefaultHandle is the thermometer's relay handle.
	DefaultHandle = "thermometer1"

	// DefaultBroadcastInterval separates temperature updates.
	DefaultBroadcastInterval = 100 * time.Second

	// RebootDelay is how long a reboot takes.
	RebootDelay = 2 * time.Second

	// rangeReadings is the number of readings in a range reply.
	rangeReadings = 5
)

// Reply texts.
const (
	ReplySubscribed   = "Subscription confirmed."
	ReplyUnsubscribed = "Unsubscribed."
	ReplyRange        = "Temperature range data"
	ReplyRebooted     = "Reboot complete."
	ReplyUpdate       = "Temperature update"
)

// Agent is a running thermometer.
type Agent struct {
	session  *bot.Session
	interval time.Duration
	logger   *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand

	mu          sync.Mutex
	subscribers map[string]struct{}
}

// Options tune an Agent. Zero values select the defaults.
type Options struct {
	BroadcastInterval time.Duration

	// Rand supplies readings. Defaults to a randomly seeded source.
	Rand *rand.Rand
}

// New creates a thermometer speaking through session.
func New(session *bot.Session, options Options) *Agent {
	if options.BroadcastInterval <= 0 {
		options.BroadcastInterval = DefaultBroadcastInterval
	}
	if options.Rand == nil {
		options.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Agent{
		session:     session,
		interval:    options.BroadcastInterval,
		logger:      session.Logger(),
		rand:        options.Rand,
		subscribers: make(map[string]struct{}),
	}
}

// Run answers commands and broadcasts updates until ctx is cancelled
// or the relay connection is lost.
func (a *Agent) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.session.Serve(ctx, a.handle)
	})
	group.Go(func() error {
		a.broadcastLoop(ctx)
		return nil
	})
	return group.Wait()
}

// Subscribers returns the current subscribers in sorted order.
func (a *Agent) Subscribers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	handles := make([]string, 0, len(a.subscribers))
	for handle := range a.subscribers {
		handles = append(handles, handle)
	}
	slices.Sort(handles)
	return handles
}

func (a *Agent) handle(ctx context.Context, delivery wire.Delivery) {
	command := strings.ToLower(strings.TrimSpace(delivery.Body))
	sender := delivery.Sender

	switch {
	case command == "reboot":
		a.logger.Info("rebooting", "requested_by", sender)
		select {
		case <-a.session.Clock().After(RebootDelay):
		case <-ctx.Done():
			return
		}
		a.reply(ctx, sender, ReplyRebooted, nil)
	case command == "range":
		readings := make([]float64, rangeReadings)
		for i := range readings {
			readings[i] = a.reading(20.0, 25.0)
		}
		a.reply(ctx, sender, ReplyRange, map[string]any{
			"temps": readings,
			"time":  wire.FormatTimestamp(a.session.Now()),
		})
	// "unsubscribe" contains "subscribe", so it is matched first.
	case strings.Contains(command, "unsubscribe"):
		a.mu.Lock()
		delete(a.subscribers, sender)
		a.mu.Unlock()
		a.logger.Info("unsubscribed", "handle", sender)
		a.reply(ctx, sender, ReplyUnsubscribed, nil)
	case strings.Contains(command, "subscribe"):
		a.mu.Lock()
		a.subscribers[sender] = struct{}{}
		a.mu.Unlock()
		a.logger.Info("subscribed", "handle", sender)
		a.reply(ctx, sender, ReplySubscribed, nil)
	default:
		a.logger.Debug("ignoring unknown command", "sender", sender, "command", command)
	}
}

func (a *Agent) broadcastLoop(ctx context.Context) {
	ticker := a.session.Clock().NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.broadcast(ctx)
		}
	}
}

// broadcast sends one reading to every subscriber.
func (a *Agent) broadcast(ctx context.Context) {
	subscribers := a.Subscribers()
	if len(subscribers) == 0 {
		return
	}
	metadata := map[string]any{
		"temperature": a.reading(22.0, 24.0),
		"unit":        "C",
		"time":        wire.FormatTimestamp(a.session.Now()),
	}
	a.logger.Debug("broadcasting temperature", "subscribers", len(subscribers))
	for _, handle := range subscribers {
		a.reply(ctx, handle, ReplyUpdate, metadata)
	}
}

func (a *Agent) reply(ctx context.Context, destination, body string, metadata map[string]any) {
	if err := a.session.Hold(ctx, destination, body, wire.KindNotification, metadata); err != nil {
		a.logger.Warn("reply not stored", "destination", destination, "error", err)
	}
}

// reading returns a value between low and high rounded to one decimal.
func (a *Agent) reading(low, high float64) float64 {
	a.randMu.Lock()
	value := low + a.rand.Float64()*(high-low)
	a.randMu.Unlock()
	return math.Round(value*10) / 10
}
