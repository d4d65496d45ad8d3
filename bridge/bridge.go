// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/netutil"
	"github.com/parley-chat/parley/lib/relayclient"
	"github.com/parley-chat/parley/lib/wire"
)

const (
	// DefaultDialTimeout bounds connecting and logging in to the relay.
	DefaultDialTimeout = 10 * time.Second

	// DefaultLoginTimeout bounds how long a /ws client may take to send
	// its login frame.
	DefaultLoginTimeout = 30 * time.Second

	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Status is the body of GET /status.
type Status struct {
	Status                    string   `json:"status"`
	ConnectedWebSocketClients int      `json:"connected_websocket_clients"`
	ConnectedRelayClients     int      `json:"connected_tcp_clients"`
	WebSocketClients          []string `json:"websocket_clients"`
	RelayClients              []string `json:"tcp_clients"`
}

// Bridge pairs WebSocket clients with relay connections.
type Bridge struct {
	// ListenAddr is the HTTP address to listen on (e.g. "0.0.0.0:5051").
	ListenAddr string

	// RelayAddr is the relay's TCP address.
	RelayAddr string

	// AllowedOrigins restricts WebSocket upgrades to these Origin
	// values. Empty allows every origin.
	AllowedOrigins []string

	// DialTimeout defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// LoginTimeout defaults to DefaultLoginTimeout.
	LoginTimeout time.Duration

	// Clock stamps frames the bridge makes up itself. Defaults to the
	// real clock.
	Clock clock.Clock

	Logger *slog.Logger

	mu      sync.Mutex
	sockets map[string]*pair
	relays  map[string]*relayclient.Conn

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	pairs    sync.WaitGroup
	done     chan struct{}
}

// pair is one bridged user: a WebSocket and the relay connection made
// on its behalf.
type pair struct {
	handle string
	socket *websocket.Conn
	relay  *relayclient.Conn
	logger *slog.Logger

	// exiting is set once the browser asked to leave, so the relay
	// closing afterwards is not reported as a lost connection.
	exiting atomic.Bool

	writeMu      sync.Mutex
	teardownOnce sync.Once
}

func (p *pair) writeFrame(frame Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.socket.WriteJSON(frame)
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Bridge) clock() clock.Clock {
	if b.Clock != nil {
		return b.Clock
	}
	return clock.Real()
}

// Start binds the listener and begins serving. Cancelling ctx has the
// same effect as Stop, without waiting.
func (b *Bridge) Start(ctx context.Context) error {
	if b.RelayAddr == "" {
		return fmt.Errorf("bridge: RelayAddr is required")
	}
	if b.DialTimeout == 0 {
		b.DialTimeout = DefaultDialTimeout
	}
	if b.LoginTimeout == 0 {
		b.LoginTimeout = DefaultLoginTimeout
	}

	listener, err := net.Listen("tcp", b.ListenAddr)
	if err != nil {
		return fmt.Errorf("bridge: listening on %s: %w", b.ListenAddr, err)
	}

	b.sockets = make(map[string]*pair)
	b.relays = make(map[string]*relayclient.Conn)
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     b.checkOrigin,
	}
	b.listener = listener
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", b.handleLogin)
	mux.HandleFunc("GET /ws/{username}", b.handlePathLogin)
	mux.HandleFunc("GET /status", b.handleStatus)
	mux.HandleFunc("GET /health", b.handleHealth)
	b.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return b.ctx },
	}

	go func() {
		defer close(b.done)
		if err := b.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger().Error("bridge serve failed", "error", err)
		}
	}()

	b.logger().Info("bridge started",
		"listen", listener.Addr().String(),
		"relay", b.RelayAddr,
	)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (b *Bridge) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Stop tears down every pair, stops the HTTP server, and waits for all
// handlers to return.
func (b *Bridge) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		b.logger().Warn("bridge shutdown incomplete", "error", err)
	}
	b.pairs.Wait()
	<-b.done
	b.logger().Info("bridge stopped")
}

// Wait blocks until the HTTP server has stopped serving.
func (b *Bridge) Wait() {
	if b.done != nil {
		<-b.done
	}
}

// Status reports both handle maps.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	sockets := sortedKeys(b.sockets)
	relays := sortedKeys(b.relays)
	b.mu.Unlock()
	return Status{
		Status:                    "running",
		ConnectedWebSocketClients: len(sockets),
		ConnectedRelayClients:     len(relays),
		WebSocketClients:          sockets,
		RelayClients:              relays,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func (b *Bridge) checkOrigin(r *http.Request) bool {
	if len(b.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(b.AllowedOrigins, origin)
}

func (b *Bridge) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.Status())
}

func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func (b *Bridge) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.serveSocket(w, r, "")
}

func (b *Bridge) handlePathLogin(w http.ResponseWriter, r *http.Request) {
	b.serveSocket(w, r, r.PathValue("username"))
}

// serveSocket runs one WebSocket from upgrade to teardown. An empty
// handle means the client logs in with its first frame.
func (b *Bridge) serveSocket(w http.ResponseWriter, r *http.Request, handle string) {
	b.pairs.Add(1)
	defer b.pairs.Done()

	socket, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		b.logger().Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	socket.SetReadLimit(wire.MaxFrameSize)
	logger := b.logger().With("connection_id", uuid.NewString(), "remote", r.RemoteAddr)

	// Until the pair exists, Stop can only interrupt by closing the
	// socket.
	stopLogin := context.AfterFunc(b.ctx, func() { socket.Close() })
	defer stopLogin()

	if handle == "" {
		handle, err = b.readLogin(socket)
		if err != nil {
			logger.Debug("websocket login failed", "error", err)
			b.reject(socket, "Expected a login frame with a username.")
			return
		}
	}
	if err := wire.ValidateHandle(handle); err != nil {
		b.reject(socket, fmt.Sprintf("Invalid username %q.", handle))
		return
	}

	p := &pair{handle: handle, socket: socket, logger: logger.With("handle", handle)}
	if !b.reserve(p) {
		b.reject(socket, fmt.Sprintf("Username '%s' is already connected through the bridge.", handle))
		return
	}

	dialCtx, cancel := context.WithTimeout(b.ctx, b.DialTimeout)
	relay, err := relayclient.Dial(dialCtx, b.RelayAddr, handle)
	cancel()
	if err != nil {
		b.release(p)
		p.logger.Info("relay login failed", "error", err)
		if errors.Is(err, relayclient.ErrHandleTaken) {
			b.reject(socket, wire.NoticeHandleTaken)
		} else {
			b.reject(socket, "Failed to connect to chat server. Is the server running?")
		}
		return
	}
	if !b.attach(p, relay) {
		// Stop raced with the login.
		relay.Exit()
		b.release(p)
		socket.Close()
		return
	}
	stopLogin()

	p.logger.Info("websocket paired with relay")
	if err := p.writeFrame(Frame{Type: FrameLoginSuccess, Username: handle, OnlineUsers: relay.Roster()}); err != nil {
		b.teardown(p, false)
		return
	}
	b.broadcast(p, Frame{Type: FrameUserJoined, Username: handle, OnlineUsers: b.bridgedHandles()})

	stop := context.AfterFunc(b.ctx, func() { b.teardown(p, false) })
	defer stop()

	var group errgroup.Group
	group.Go(func() error {
		err := b.pumpRelay(p)
		b.teardown(p, true)
		return err
	})
	group.Go(func() error {
		err := b.pumpSocket(p)
		b.teardown(p, false)
		return err
	})
	if err := group.Wait(); err != nil {
		p.logger.Debug("pair finished", "error", err)
	}
}

// readLogin reads the first frame of a /ws connection.
func (b *Bridge) readLogin(socket *websocket.Conn) (string, error) {
	socket.SetReadDeadline(time.Now().Add(b.LoginTimeout))
	defer socket.SetReadDeadline(time.Time{})

	var frame ClientFrame
	if err := socket.ReadJSON(&frame); err != nil {
		return "", err
	}
	if frame.Type != FrameLogin || frame.Username == "" {
		return "", fmt.Errorf("first frame was %q, not a login", frame.Type)
	}
	return frame.Username, nil
}

// reject tells a not-yet-paired client why and closes its socket.
func (b *Bridge) reject(socket *websocket.Conn, message string) {
	socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	socket.WriteJSON(errorFrame(message, b.clock().Now()))
	socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""),
		time.Now().Add(time.Second))
	socket.Close()
}

// reserve claims the handle in the socket map.
func (b *Bridge) reserve(p *pair) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.sockets[p.handle]; taken {
		return false
	}
	b.sockets[p.handle] = p
	return true
}

// attach records the relay side. It fails once Stop has begun, so no
// pair appears after teardown of the rest.
func (b *Bridge) attach(p *pair, relay *relayclient.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx.Err() != nil {
		return false
	}
	p.relay = relay
	b.relays[p.handle] = relay
	return true
}

// release removes p from both maps if it still owns its entries.
func (b *Bridge) release(p *pair) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sockets[p.handle] == p {
		delete(b.sockets, p.handle)
	}
	if p.relay != nil && b.relays[p.handle] == p.relay {
		delete(b.relays, p.handle)
	}
}

func (b *Bridge) bridgedHandles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.sockets)
}

// broadcast sends frame to every bridged session except skip.
func (b *Bridge) broadcast(skip *pair, frame Frame) {
	b.mu.Lock()
	targets := make([]*pair, 0, len(b.sockets))
	for _, p := range b.sockets {
		if p != skip && p.relay != nil {
			targets = append(targets, p)
		}
	}
	b.mu.Unlock()

	for _, p := range targets {
		if err := p.writeFrame(frame); err != nil {
			p.logger.Debug("broadcast write failed", "type", frame.Type, "error", err)
		}
	}
}

// teardown dismantles a pair exactly once. relayLost is true when the
// relay side ended first.
func (b *Bridge) teardown(p *pair, relayLost bool) {
	p.teardownOnce.Do(func() {
		b.release(p)

		if relayLost && !p.exiting.Load() && b.ctx.Err() == nil {
			p.writeFrame(Frame{
				Type:      FrameNotification,
				Message:   NoticeConnectionLost,
				Timestamp: wire.FormatTimestamp(b.clock().Now()),
			})
		}
		p.relay.Exit()

		p.writeMu.Lock()
		p.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		p.socket.Close()

		p.logger.Info("pair closed", "relay_lost", relayLost)
		b.broadcast(p, Frame{Type: FrameUserLeft, Username: p.handle, OnlineUsers: b.bridgedHandles()})
	})
}

// pumpRelay forwards relay lines to the WebSocket until either side
// fails.
func (b *Bridge) pumpRelay(p *pair) error {
	for {
		line, err := p.relay.ReadLine()
		if err != nil {
			if netutil.IsExpectedCloseError(err) {
				return nil
			}
			return fmt.Errorf("bridge: reading relay: %w", err)
		}
		if err := p.writeFrame(FrameForLine(line, b.clock().Now())); err != nil {
			return fmt.Errorf("bridge: writing websocket: %w", err)
		}
	}
}

// pumpSocket forwards WebSocket frames to the relay until either side
// fails. Unacceptable frames are answered with an error frame.
func (b *Bridge) pumpSocket(p *pair) error {
	for {
		_, data, err := p.socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				netutil.IsExpectedCloseError(err) {
				return nil
			}
			return fmt.Errorf("bridge: reading websocket: %w", err)
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			p.writeFrame(errorFrame("Invalid JSON frame.", b.clock().Now()))
			continue
		}
		line, err := LineForFrame(frame)
		if err != nil {
			p.writeFrame(errorFrame(err.Error(), b.clock().Now()))
			continue
		}
		if line == wire.CommandExit {
			p.exiting.Store(true)
		}
		if err := p.relay.SendLine(line); err != nil {
			p.writeFrame(errorFrame("Failed to send message to chat server.", b.clock().Now()))
			return fmt.Errorf("bridge: writing relay: %w", err)
		}
		if line == wire.CommandExit {
			return nil
		}
	}
}
