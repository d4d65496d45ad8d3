// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley-chat/parley/lib/wire"
)

// State is a session's position in its lifecycle.
type State int32

const (
	StateHandshaking State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrSessionClosed is returned by Send once the session is closed.
var ErrSessionClosed = errors.New("relay: session closed")

// Session is one client connection. Reads happen only on the session's
// own goroutine; Send may be called from any goroutine, and writes are
// serialized so concurrent deliveries never interleave.
type Session struct {
	id           int64
	conn         net.Conn
	reader       *wire.FrameReader
	writeTimeout time.Duration

	writeMu   sync.Mutex
	state     atomic.Int32
	handle    atomic.Pointer[string]
	closeOnce sync.Once
	closeErr  error
}

func newSession(conn net.Conn, id int64, writeTimeout time.Duration) *Session {
	return &Session{
		id:           id,
		conn:         conn,
		reader:       wire.NewFrameReader(conn),
		writeTimeout: writeTimeout,
	}
}

// ID returns the server-assigned connection number.
func (s *Session) ID() int64 { return s.id }

// Handle returns the registered handle, or "" before the handshake
// completes.
func (s *Session) Handle() string {
	if handle := s.handle.Load(); handle != nil {
		return *handle
	}
	return ""
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// activate moves a handshaking session to Active under handle.
func (s *Session) activate(handle string) {
	s.handle.Store(&handle)
	s.state.CompareAndSwap(int32(StateHandshaking), int32(StateActive))
}

// Send writes line as one frame. A write that does not complete within
// the session's write timeout fails; the caller treats that like any
// other transport fault.
func (s *Session) Send(line string) error {
	return s.write(wire.AppendTerminator(line))
}

// sendPrompt writes text without a terminator.
func (s *Session) sendPrompt(text string) error {
	return s.write(text)
}

func (s *Session) write(data string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeLocked(data)
}

// writeLocked writes data; the caller holds writeMu.
func (s *Session) writeLocked(data string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("relay: setting write deadline: %w", err)
		}
	}
	if _, err := s.conn.Write([]byte(data)); err != nil {
		return fmt.Errorf("relay: writing to session %d: %w", s.id, err)
	}
	return nil
}

// holdWrites blocks Send from other goroutines until releaseWrites.
// The login sequence holds writes from registration until the roster
// and held messages are out, so no live delivery overtakes them.
func (s *Session) holdWrites() { s.writeMu.Lock() }

func (s *Session) releaseWrites() { s.writeMu.Unlock() }

// sendHeld is Send for the goroutine holding writes.
func (s *Session) sendHeld(line string) error {
	return s.writeLocked(wire.AppendTerminator(line))
}

// readFrame returns the next frame from the client.
func (s *Session) readFrame() (string, error) {
	return s.reader.ReadFrame()
}

// Close moves the session to Closed and closes its transport. Only the
// first call has an effect; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
