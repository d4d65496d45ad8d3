// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/wire"
)

// Outcome reports what Route did with a message.
type Outcome int

const (
	// Delivered: written to the destination's live session.
	Delivered Outcome = iota
	// StoredOffline: the destination had no session; the message is
	// held.
	StoredOffline
	// StoredAfterFault: the write to the destination failed; the
	// message is held and the destination's session is closed.
	StoredAfterFault
	// StoreUnavailable: the message could be neither delivered nor
	// held. It is lost, and the sender was told so.
	StoreUnavailable
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case StoredOffline:
		return "stored_offline"
	case StoredAfterFault:
		return "stored_after_fault"
	case StoreUnavailable:
		return "store_unavailable"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Router moves messages from senders to destinations: live delivery
// first, the holding store otherwise.
type Router struct {
	registry *Registry
	store    holdstore.Store
	logger   *slog.Logger
}

// NewRouter returns a Router over registry and store.
func NewRouter(registry *Registry, store holdstore.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, store: store, logger: logger}
}

// Route delivers message to message.Destination, storing it when the
// destination is absent or the write fails. The sender session, if not
// nil, receives a notice whenever the message was not delivered live.
// Failures to write that notice are ignored: the sender's own goroutine
// notices the broken transport on its next read.
func (r *Router) Route(ctx context.Context, sender *Session, message wire.Message) Outcome {
	logger := r.logger.With("sender", message.Sender, "destination", message.Destination)

	outcome := StoredOffline
	if destination, online := r.registry.Lookup(message.Destination); online {
		err := destination.Send(wire.FormatDelivery(message))
		if err == nil {
			logger.Debug("message delivered")
			return Delivered
		}
		logger.Debug("direct delivery failed, holding message", "error", err)
		// A half-written frame leaves the destination's stream unusable.
		destination.Close()
		outcome = StoredAfterFault
	}

	if err := r.store.Append(ctx, message); err != nil {
		logger.Warn("holding store append failed", "error", err)
		notify(sender, wire.NoticeStoreUnavailable(message.Destination))
		return StoreUnavailable
	}

	logger.Debug("message held", "outcome", outcome)
	if outcome == StoredAfterFault {
		notify(sender, wire.NoticeUndeliverable(message.Destination))
	} else {
		notify(sender, wire.NoticeOffline(message.Destination))
	}
	return outcome
}

// DeliverHeld drains the messages held for session's handle and writes
// each one with the stored prefix. If a write fails, the messages not
// yet written go back to the store, so none is lost; they are appended
// behind anything that arrived for the handle in the meantime.
//
// A drain failure is reported to the session with a notice and
// returned.
func (r *Router) DeliverHeld(ctx context.Context, session *Session) error {
	return r.deliverHeld(ctx, session.Handle(), session.Send)
}

// deliverHeld is DeliverHeld writing through send.
func (r *Router) deliverHeld(ctx context.Context, handle string, send func(line string) error) error {
	held, err := r.store.Drain(ctx, handle)
	if err != nil {
		r.logger.Warn("holding store drain failed", "handle", handle, "error", err)
		_ = send(wire.NoticeFetchUnavailable)
		return fmt.Errorf("relay: draining held messages for %q: %w", handle, err)
	}

	for index, message := range held {
		if err := send(wire.FormatStored(message)); err != nil {
			r.requeue(context.WithoutCancel(ctx), held[index:])
			return fmt.Errorf("relay: delivering held messages to %q: %w", handle, err)
		}
	}
	if len(held) > 0 {
		r.logger.Debug("held messages delivered", "handle", handle, "count", len(held))
	}
	return nil
}

func (r *Router) requeue(ctx context.Context, messages []wire.Message) {
	for _, message := range messages {
		if err := r.store.Append(ctx, message); err != nil {
			r.logger.Error("held message lost while requeueing",
				"destination", message.Destination,
				"id", message.ID,
				"error", err,
			)
		}
	}
	r.logger.Debug("held messages requeued", "count", len(messages))
}

func notify(session *Session, notice string) {
	if session == nil {
		return
	}
	_ = session.Send(notice)
}
