// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay is the presence-aware message relay: a TCP server that
// registers clients under unique handles and routes directed messages
// between them, falling back to a holding store when the destination is
// not connected or cannot be written to.
//
// Each accepted connection becomes a [Session] driven by its own
// goroutine through three states:
//
//	Handshaking -> Active -> Closed
//
// A session sends the username prompt, reads one frame as the handle,
// and claims it in the [Registry]. A taken handle is refused with a
// notice and the connection is closed. Once active, the session sends
// the roster line, flushes messages held for it, and then interprets
// every frame as "exit", "!check", or "DESTINATION: BODY".
//
// Routing is done by the [Router]: one write attempt to the
// destination's live session, then [holdstore.Store.Append] if the
// destination is absent or the write failed. The sender hears which of
// those happened. There is no retry of a failed direct write; the
// message is stored exactly once instead.
//
// Ordering: frames from one sender are routed sequentially by that
// sender's goroutine, and the store drains in append order. A session
// holds its writes from registration until its roster line and held
// messages are written, so a live delivery routed during login waits
// behind them. Together these keep messages from one sender to one
// destination in the order sent. There is no ordering between
// different senders.
//
// [Server] owns the listener, the registry, and the router. Stop closes
// every connection and waits for all session goroutines to finish.
package relay
