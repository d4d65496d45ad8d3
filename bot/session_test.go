// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/relayclient"
	"github.com/parley-chat/parley/lib/testutil"
	"github.com/parley-chat/parley/lib/wire"
	"github.com/parley-chat/parley/relay"
)

const testTimeout = 5 * time.Second

var testEpoch = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

func startRelay(t *testing.T, store holdstore.Store) *relay.Server {
	t.Helper()
	server := &relay.Server{
		ListenAddr: "127.0.0.1:0",
		Store:      store,
		Clock:      clock.Fake(testEpoch),
		Logger:     logging.Discard(),
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("relay Start: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

func dialBot(t *testing.T, server *relay.Server, store holdstore.Store) *Session {
	t.Helper()
	session, err := Dial(context.Background(), Config{
		RelayAddr: server.Addr().String(),
		Handle:    "helper",
		Store:     store,
		Clock:     clock.Fake(testEpoch),
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestDialRequiresStore(t *testing.T) {
	if _, err := Dial(context.Background(), Config{RelayAddr: "127.0.0.1:1", Handle: "helper"}); err == nil {
		t.Error("Dial succeeded without a store")
	}
}

func TestDialHandleTaken(t *testing.T) {
	store := holdstore.NewMemory()
	server := startRelay(t, store)
	dialBot(t, server, store)

	_, err := Dial(context.Background(), Config{
		RelayAddr: server.Addr().String(),
		Handle:    "helper",
		Store:     store,
		Logger:    logging.Discard(),
	})
	if !errors.Is(err, relayclient.ErrHandleTaken) {
		t.Errorf("error = %v, want ErrHandleTaken", err)
	}
}

func TestServeSkipsNoticesAndCancels(t *testing.T) {
	store := holdstore.NewMemory()
	server := startRelay(t, store)
	session := dialBot(t, server, store)

	received := make(chan wire.Delivery, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- session.Serve(ctx, func(_ context.Context, delivery wire.Delivery) {
			received <- delivery
		})
	}()

	// The relay answers this with an offline notice, which Serve must
	// not hand to the handler.
	if err := session.Send(ctx, "nobody", "hello?", wire.KindChat); err != nil {
		t.Fatalf("Send: %v", err)
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), testTimeout)
	defer dialCancel()
	alice, err := relayclient.Dial(dialCtx, server.Addr().String(), "alice")
	if err != nil {
		t.Fatalf("Dial alice: %v", err)
	}
	defer alice.Close()
	if err := alice.Route("helper", "ping"); err != nil {
		t.Fatal(err)
	}

	delivery := testutil.RequireReceive(t, received, testTimeout, "waiting for alice's message")
	if delivery.Sender != "alice" || delivery.Body != "ping" || delivery.Kind != wire.KindChat {
		t.Errorf("handler got %+v", delivery)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "Serve did not return"); err != nil {
		t.Errorf("Serve after cancel = %v, want nil", err)
	}
	select {
	case extra := <-received:
		t.Errorf("handler also got %+v", extra)
	default:
	}
}

func TestServeReportsLostRelay(t *testing.T) {
	store := holdstore.NewMemory()
	server := startRelay(t, store)
	session := dialBot(t, server, store)

	done := make(chan error, 1)
	go func() {
		done <- session.Serve(context.Background(), func(context.Context, wire.Delivery) {})
	}()
	server.Stop()
	if err := testutil.RequireReceive(t, done, testTimeout, "Serve did not return"); err == nil {
		t.Error("Serve returned nil after the relay stopped")
	}
}

func TestSendFallsBackToStore(t *testing.T) {
	store := holdstore.NewMemory()
	server := startRelay(t, store)
	session := dialBot(t, server, store)
	session.conn.Close()

	if err := session.Send(context.Background(), "alice", "are you there?", wire.KindNotification); err != nil {
		t.Fatalf("Send: %v", err)
	}
	held, err := store.Drain(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(held) != 1 {
		t.Fatalf("held %d messages, want 1", len(held))
	}
	want := wire.NewMessage("helper", "alice", "are you there?", wire.KindNotification, nil, testEpoch)
	want.ID = held[0].ID
	if held[0].Sender != want.Sender || held[0].Body != want.Body ||
		held[0].Kind != want.Kind || held[0].Timestamp != want.Timestamp {
		t.Errorf("held %+v, want %+v", held[0], want)
	}
}

func TestHoldCarriesMetadata(t *testing.T) {
	store := holdstore.NewMemory()
	server := startRelay(t, store)
	session := dialBot(t, server, store)

	metadata := map[string]any{"unit": "C"}
	if err := session.Hold(context.Background(), "alice", "reading", wire.KindNotification, metadata); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	held, _ := store.Drain(context.Background(), "alice")
	if len(held) != 1 || held[0].Metadata["unit"] != "C" {
		t.Errorf("held %+v", held)
	}

	if err := session.Hold(context.Background(), "alice", "bad", wire.KindSystem, nil); err == nil {
		t.Error("Hold accepted a system message")
	}
}
