// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/netutil"
	"github.com/parley-chat/parley/lib/wire"
)

// DefaultWriteTimeout bounds a single write to a client.
const DefaultWriteTimeout = 10 * time.Second

// Server accepts relay clients over TCP.
type Server struct {
	// ListenAddr is the TCP address to listen on, e.g. "0.0.0.0:5000".
	// Port 0 picks a free port; see Addr.
	ListenAddr string

	// Store holds messages for absent destinations. Required.
	Store holdstore.Store

	// Clock stamps routed messages. Nil means clock.Real().
	Clock clock.Clock

	// WriteTimeout bounds each write to a client. Zero means
	// DefaultWriteTimeout; negative disables the deadline.
	WriteTimeout time.Duration

	// Logger receives structured output. Nil means slog.Default().
	// Per-connection and per-message events are logged at Debug.
	Logger *slog.Logger

	registry     *Registry
	router       *Router
	listener     net.Listener
	cancel       context.CancelFunc
	done         chan struct{}
	connections  sync.WaitGroup
	connectionID atomic.Int64
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) clock() clock.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return clock.Real()
}

func (s *Server) writeTimeout() time.Duration {
	switch {
	case s.WriteTimeout == 0:
		return DefaultWriteTimeout
	case s.WriteTimeout < 0:
		return 0
	}
	return s.WriteTimeout
}

// Start binds the listener and begins accepting clients in the
// background. It returns once the listener is bound. The server runs
// until Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.ListenAddr == "" {
		return fmt.Errorf("relay: ListenAddr is required")
	}
	if s.Store == nil {
		return fmt.Errorf("relay: Store is required")
	}

	listener, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("relay: listening on %s: %w", s.ListenAddr, err)
	}
	s.listener = listener
	s.registry = NewRegistry()
	s.router = NewRouter(s.registry, s.Store, s.logger())

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	context.AfterFunc(ctx, func() {
		s.listener.Close()
		s.registry.Close()
	})

	go func() {
		defer close(s.done)
		s.acceptLoop(ctx)
	}()

	s.logger().Info("relay started", "listen_addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Registry returns the live session registry, or nil before Start.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Stop closes the listener and every connection, then waits for all
// session goroutines to exit.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Wait()
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// acceptLoop returns only after every connection goroutine has
// finished, so a closed done channel means the server is quiescent.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.connections.Wait()
				s.logger().Info("relay stopped")
				return
			}
			s.logger().Error("accept failed", "error", err)
			continue
		}

		id := s.connectionID.Add(1)
		s.connections.Add(1)
		go func() {
			defer s.connections.Done()
			s.handleConnection(ctx, conn, id)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, id int64) {
	session := newSession(conn, id, s.writeTimeout())
	logger := s.logger().With("connection_id", id)
	logger.Debug("connection accepted", "remote_addr", conn.RemoteAddr().String())

	// Closing the transport is the only way to interrupt a blocked read.
	stopWatching := context.AfterFunc(ctx, func() { session.Close() })
	defer stopWatching()
	defer session.Close()

	handle, ok := s.handshake(session, logger)
	if !ok {
		return
	}
	defer s.registry.Unregister(handle, session)
	logger = logger.With("handle", handle)
	logger.Info("session registered", "online", s.registry.Len())

	if !s.greet(ctx, session, handle, logger) {
		return
	}

	s.serve(ctx, session, logger)
	logger.Info("session closed")
}

// handshake runs the Handshaking state. It returns the registered
// handle, or false if the session must close. On success the session's
// writes are held; greet releases them.
func (s *Server) handshake(session *Session, logger *slog.Logger) (string, bool) {
	if err := session.sendPrompt(wire.HandshakePrompt); err != nil {
		logger.Debug("prompt write failed", "error", err)
		return "", false
	}
	line, err := session.readFrame()
	if err != nil {
		logQuietly(logger, "handshake read failed", err)
		return "", false
	}

	handle := strings.TrimSpace(line)
	if handle == "" {
		logger.Debug("empty handle")
		return "", false
	}
	if err := wire.ValidateHandle(handle); err != nil {
		logger.Debug("invalid handle", "handle", handle, "error", err)
		_ = session.Send(wire.NoticeInvalidHandle(handle))
		return "", false
	}

	// Writes stay held until greet has sent the roster and held
	// messages.
	session.holdWrites()
	if err := s.registry.Register(handle, session); err != nil {
		session.releaseWrites()
		logger.Info("handle refused", "handle", handle, "error", err)
		if errors.Is(err, ErrHandleTaken) {
			_ = session.Send(wire.NoticeHandleTaken)
		}
		return "", false
	}
	session.activate(handle)
	return handle, true
}

// greet sends the roster line and then the messages held for handle,
// and releases the session's writes. Live deliveries routed meanwhile
// wait behind it. It reports false if the session must close.
func (s *Server) greet(ctx context.Context, session *Session, handle string, logger *slog.Logger) bool {
	defer session.releaseWrites()
	if err := session.sendHeld(wire.FormatRoster(s.registry.Handles())); err != nil {
		logger.Debug("roster write failed", "error", err)
		return false
	}
	if err := s.router.deliverHeld(ctx, handle, session.sendHeld); err != nil {
		logger.Debug("initial held delivery incomplete", "error", err)
	}
	return true
}

// serve runs the Active state until the client leaves or the transport
// fails.
func (s *Server) serve(ctx context.Context, session *Session, logger *slog.Logger) {
	for {
		line, err := session.readFrame()
		if errors.Is(err, wire.ErrFrameTooLong) {
			logger.Debug("oversized frame discarded")
			if err := session.Send(wire.NoticeFrameTooLong()); err != nil {
				return
			}
			continue
		}
		if err != nil {
			logQuietly(logger, "read failed", err)
			return
		}

		command := wire.ClassifyCommand(line)
		switch command.Kind {
		case wire.CommandQuit:
			logger.Debug("client exit")
			return
		case wire.CommandFetchHeld:
			if err := s.router.DeliverHeld(ctx, session); err != nil {
				logger.Debug("held delivery incomplete", "error", err)
			}
		case wire.CommandRoute:
			message := wire.NewMessage(session.Handle(), command.Destination, command.Body,
				wire.KindChat, nil, s.clock().Now())
			outcome := s.router.Route(ctx, session, message)
			logger.Debug("message routed", "destination", command.Destination, "outcome", outcome.String())
		default:
			if err := session.Send(wire.NoticeInvalidFormat); err != nil {
				logger.Debug("notice write failed", "error", err)
			}
		}
	}
}

// logQuietly logs ordinary disconnects at Debug and everything else at
// Warn.
func logQuietly(logger *slog.Logger, message string, err error) {
	if netutil.IsExpectedCloseError(err) {
		logger.Debug(message, "error", err)
		return
	}
	logger.Warn(message, "error", err)
}
