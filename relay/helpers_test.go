// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/netutil"
	"github.com/parley-chat/parley/lib/testutil"
	"github.com/parley-chat/parley/lib/wire"
)

const testTimeout = 5 * time.Second

var testEpoch = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

// peer is the client end of an in-memory session transport. Every
// frame the session writes shows up on lines.
type peer struct {
	conn  net.Conn
	lines chan string
}

// pipeSession returns a session over net.Pipe and the peer reading its
// output. Both ends close at test cleanup.
func pipeSession(t *testing.T, id int64) (*Session, *peer) {
	t.Helper()
	server, client := net.Pipe()
	session := newSession(server, id, 0)
	p := &peer{conn: client, lines: make(chan string, 64)}
	go func() {
		defer close(p.lines)
		reader := wire.NewFrameReader(client)
		for {
			line, err := reader.ReadFrame()
			if err != nil {
				return
			}
			p.lines <- line
		}
	}()
	t.Cleanup(func() {
		session.Close()
		client.Close()
	})
	return session, p
}

// activeSession is pipeSession with the session already registered
// under handle.
func activeSession(t *testing.T, registry *Registry, handle string) (*Session, *peer) {
	t.Helper()
	session, p := pipeSession(t, int64(registry.Len()+1))
	if err := registry.Register(handle, session); err != nil {
		t.Fatalf("Register(%q): %v", handle, err)
	}
	session.activate(handle)
	return session, p
}

func (p *peer) expect(t *testing.T, want string) {
	t.Helper()
	got := testutil.RequireReceive(t, p.lines, testTimeout, "waiting for %q", want)
	if got != want {
		t.Fatalf("received %q, want %q", got, want)
	}
}

func (p *peer) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case line, ok := <-p.lines:
		if ok {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

// failingStore refuses every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Append(context.Context, wire.Message) error {
	return errStoreDown
}

func (failingStore) Drain(context.Context, string) ([]wire.Message, error) {
	return nil, errStoreDown
}

// gatedStore is a Memory store whose first Drain for handle blocks
// until release is closed. entered closes when that Drain starts.
type gatedStore struct {
	*holdstore.Memory
	handle  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(handle string) *gatedStore {
	return &gatedStore{
		Memory:  holdstore.NewMemory(),
		handle:  handle,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *gatedStore) Drain(ctx context.Context, handle string) ([]wire.Message, error) {
	if handle == s.handle {
		s.once.Do(func() {
			close(s.entered)
			select {
			case <-s.release:
			case <-ctx.Done():
			}
		})
	}
	return s.Memory.Drain(ctx, handle)
}

func startServer(t *testing.T, store holdstore.Store) *Server {
	t.Helper()
	server := &Server{
		ListenAddr: "127.0.0.1:0",
		Store:      store,
		Clock:      clock.Fake(testEpoch),
		Logger:     logging.Discard(),
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

// client is a raw TCP relay client.
type client struct {
	t      *testing.T
	conn   net.Conn
	reader *wire.FrameReader
}

// connect dials server and consumes the username prompt.
func connect(t *testing.T, server *Server) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", server.Addr().String(), testTimeout)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	c := &client{t: t, conn: conn, reader: wire.NewFrameReader(conn)}
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	if err := c.reader.ReadPrompt(wire.HandshakePrompt); err != nil {
		t.Fatalf("reading prompt: %v", err)
	}
	return c
}

// login connects as handle and returns the roster it was greeted with.
func login(t *testing.T, server *Server, handle string) (*client, []string) {
	t.Helper()
	c := connect(t, server)
	c.send(handle)
	line := c.read()
	roster, ok := wire.ParseRoster(line)
	if !ok {
		t.Fatalf("login %q: got %q, want a roster line", handle, line)
	}
	return c, roster
}

func (c *client) send(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(testTimeout))
	if _, err := c.conn.Write([]byte(wire.AppendTerminator(line))); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *client) read() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	line, err := c.reader.ReadFrame()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return line
}

func (c *client) expect(want string) {
	c.t.Helper()
	if got := c.read(); got != want {
		c.t.Fatalf("received %q, want %q", got, want)
	}
}

// expectClosed reads until the server closes the connection.
func (c *client) expectClosed() {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	for {
		line, err := c.reader.ReadFrame()
		if err != nil {
			if netutil.IsTimeout(err) {
				c.t.Fatalf("connection still open: %v", err)
			}
			return
		}
		c.t.Logf("drained %q before close", line)
	}
}
