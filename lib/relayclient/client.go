// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package relayclient is the client side of the relay's line protocol.
// The WebSocket bridge, the bots, and the terminal client all reach the
// relay through it.
//
//	conn, err := relayclient.Dial(ctx, "127.0.0.1:5000", "alice")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//	conn.Route("bob", "Hello Bob!")
//	delivery, err := conn.Next()
//
// A Conn may be written from several goroutines; reads must stay on one.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/parley-chat/parley/lib/wire"
)

// ErrHandleTaken is returned by Dial when another client holds the
// handle.
var ErrHandleTaken = errors.New("relayclient: handle already taken")

// ErrRejected is returned by Dial when the relay answered the handshake
// with anything other than a roster line.
var ErrRejected = errors.New("relayclient: handshake rejected")

// Conn is a logged-in relay connection.
type Conn struct {
	conn   net.Conn
	reader *wire.FrameReader
	handle string
	roster []string
	now    func() time.Time

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the relay at address and logs in as handle. The
// context bounds the connect and the handshake.
func Dial(ctx context.Context, address, handle string) (*Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("relayclient: dialing %s: %w", address, err)
	}
	client, err := Handshake(ctx, conn, handle)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

// Handshake logs in over an established connection. On failure the
// caller still owns conn.
func Handshake(ctx context.Context, conn net.Conn, handle string) (*Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	reader := wire.NewFrameReader(conn)
	if err := reader.ReadPrompt(wire.HandshakePrompt); err != nil {
		return nil, fmt.Errorf("relayclient: %w", err)
	}
	if _, err := conn.Write([]byte(wire.AppendTerminator(handle))); err != nil {
		return nil, fmt.Errorf("relayclient: sending handle: %w", err)
	}
	line, err := reader.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("relayclient: reading handshake reply: %w", err)
	}

	roster, ok := wire.ParseRoster(line)
	switch {
	case ok:
	case line == wire.NoticeHandleTaken:
		return nil, fmt.Errorf("%w: %q", ErrHandleTaken, handle)
	default:
		return nil, fmt.Errorf("%w: %s", ErrRejected, line)
	}
	return &Conn{
		conn:   conn,
		reader: reader,
		handle: handle,
		roster: roster,
		now:    time.Now,
	}, nil
}

// Handle returns the handle this connection is logged in as.
func (c *Conn) Handle() string { return c.handle }

// Roster returns the handles that were online at login.
func (c *Conn) Roster() []string { return slices.Clone(c.roster) }

// SendLine writes one raw protocol line.
func (c *Conn) SendLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write([]byte(wire.AppendTerminator(wire.FlattenBody(line)))); err != nil {
		return fmt.Errorf("relayclient: write: %w", err)
	}
	return nil
}

// Route sends body to destination.
func (c *Conn) Route(destination, body string) error {
	return c.SendLine(wire.FormatRoute(destination, body))
}

// Check asks the relay to deliver held messages now.
func (c *Conn) Check() error {
	return c.SendLine(wire.CommandCheck)
}

// ReadLine returns the next line from the relay.
func (c *Conn) ReadLine() (string, error) {
	return c.reader.ReadFrame()
}

// Next reads the next line and parses it as a delivery. Lines that are
// not deliveries come back with Kind wire.KindSystem.
func (c *Conn) Next() (wire.Delivery, error) {
	line, err := c.ReadLine()
	if err != nil {
		return wire.Delivery{}, err
	}
	return wire.ParseDelivery(line, c.now()), nil
}

// Exit says goodbye and closes the connection. A failure to send the
// goodbye is ignored; the relay treats a closed connection the same way.
func (c *Conn) Exit() error {
	_ = c.SendLine(wire.CommandExit)
	return c.Close()
}

// Close closes the connection without saying goodbye. Safe to call more
// than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
