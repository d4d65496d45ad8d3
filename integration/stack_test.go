// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/bot"
	"github.com/parley-chat/parley/bot/weather"
	"github.com/parley-chat/parley/bridge"
	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/relayclient"
	"github.com/parley-chat/parley/lib/wire"
	"github.com/parley-chat/parley/relay"
)

const testTimeout = 10 * time.Second

// stack is a running relay, bridge, and holding store service.
type stack struct {
	store  *holdstore.SQLite
	api    *httptest.Server
	relay  *relay.Server
	bridge *bridge.Bridge
}

func startStack(t *testing.T) *stack {
	t.Helper()
	logger := logging.Discard()

	store, err := holdstore.OpenSQLite(holdstore.SQLiteConfig{
		Path:   filepath.Join(t.TempDir(), "parley.db"),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	api := httptest.NewServer(holdstore.NewHandler(store, clock.Real(), logger))
	t.Cleanup(api.Close)

	server := &relay.Server{
		ListenAddr: "127.0.0.1:0",
		Store:      holdstore.NewClient(api.URL, api.Client()),
		Logger:     logger,
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("relay Start: %v", err)
	}
	t.Cleanup(server.Stop)

	b := &bridge.Bridge{
		ListenAddr: "127.0.0.1:0",
		RelayAddr:  server.Addr().String(),
		Logger:     logger,
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("bridge Start: %v", err)
	}
	t.Cleanup(b.Stop)

	return &stack{store: store, api: api, relay: server, bridge: b}
}

func (s *stack) dial(t *testing.T, handle string) *relayclient.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	conn, err := relayclient.Dial(ctx, s.relay.Addr().String(), handle)
	if err != nil {
		t.Fatalf("dial %q: %v", handle, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads one delivery, failing the test if none arrives in time.
func next(t *testing.T, conn *relayclient.Conn) wire.Delivery {
	t.Helper()
	type result struct {
		delivery wire.Delivery
		err      error
	}
	results := make(chan result, 1)
	go func() {
		delivery, err := conn.Next()
		results <- result{delivery, err}
	}()
	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("%s: reading delivery: %v", conn.Handle(), r.err)
		}
		return r.delivery
	case <-time.After(testTimeout):
		conn.Close()
		t.Fatalf("%s: no delivery within %v", conn.Handle(), testTimeout)
	}
	return wire.Delivery{}
}

// awaitHeld fetches held messages until one arrives. After each fetch
// the client routes a marker to itself; the relay serves a client's
// lines in order, so anything held arrives before the marker.
func awaitHeld(t *testing.T, conn *relayclient.Conn) wire.Delivery {
	t.Helper()
	const marker = "fetch complete"
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if err := conn.Check(); err != nil {
			t.Fatalf("check: %v", err)
		}
		if err := conn.Route(conn.Handle(), marker); err != nil {
			t.Fatalf("route marker: %v", err)
		}
		for {
			delivery := next(t, conn)
			if delivery.Stored {
				return delivery
			}
			if delivery.Body == marker {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s: nothing held within %v", conn.Handle(), testTimeout)
	return wire.Delivery{}
}

func TestOfflineMessageReachesBrowser(t *testing.T) {
	s := startStack(t)

	alice := s.dial(t, "alice")
	if err := alice.Route("bob", "see you after lunch"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if notice := next(t, alice); notice.Body != wire.NoticeOffline("bob") {
		t.Fatalf("notice = %q, want %q", notice.Body, wire.NoticeOffline("bob"))
	}

	dialer := websocket.Dialer{HandshakeTimeout: testTimeout}
	socket, _, err := dialer.Dial("ws://"+s.bridge.Addr().String()+"/ws/bob", nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	defer socket.Close()
	socket.SetReadDeadline(time.Now().Add(testTimeout))

	var login bridge.Frame
	if err := socket.ReadJSON(&login); err != nil {
		t.Fatalf("read login: %v", err)
	}
	if login.Type != bridge.FrameLoginSuccess {
		t.Fatalf("first frame = %+v, want login_success", login)
	}

	var stored bridge.Frame
	if err := socket.ReadJSON(&stored); err != nil {
		t.Fatalf("read stored: %v", err)
	}
	if stored.Type != bridge.FrameStored || stored.Sender != "alice" || stored.Message != "see you after lunch" {
		t.Fatalf("stored frame = %+v", stored)
	}
}

func TestWeatherReplyHeldInSQLite(t *testing.T) {
	s := startStack(t)

	ctx, cancel := context.WithCancel(context.Background())
	session, err := bot.Dial(ctx, bot.Config{
		RelayAddr: s.relay.Addr().String(),
		Handle:    weather.DefaultHandle,
		Store:     holdstore.NewClient(s.api.URL, s.api.Client()),
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("bot Dial: %v", err)
	}
	agent := weather.New(session, weather.Options{BroadcastInterval: time.Hour})
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		session.Close()
	})

	alice := s.dial(t, "alice")
	if err := alice.Route(weather.DefaultHandle, "RANGE"); err != nil {
		t.Fatalf("route: %v", err)
	}

	reply := awaitHeld(t, alice)
	if reply.Sender != weather.DefaultHandle || reply.Kind != wire.KindNotification {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Body != weather.ReplyRange {
		t.Errorf("body = %q, want %q", reply.Body, weather.ReplyRange)
	}
	temps, ok := reply.Metadata["temps"].([]any)
	if !ok || len(temps) == 0 {
		t.Errorf("metadata = %v, want temps", reply.Metadata)
	}
}

func TestStoreOutageIsReported(t *testing.T) {
	s := startStack(t)
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")

	s.api.Close()

	if err := alice.Route("carol", "are you there?"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if notice := next(t, alice); notice.Body != wire.NoticeStoreUnavailable("carol") {
		t.Fatalf("notice = %q, want %q", notice.Body, wire.NoticeStoreUnavailable("carol"))
	}

	// Live routing does not depend on the store.
	if err := alice.Route("bob", "still here"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got := next(t, bob); got.Sender != "alice" || got.Body != "still here" {
		t.Fatalf("bob got %+v", got)
	}
	held, err := s.store.Drain(context.Background(), "carol")
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(held) != 0 {
		t.Errorf("held for carol during outage: %+v", held)
	}
}
