// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge lets WebSocket clients use the relay. Each logged-in
// WebSocket is paired with its own relay connection under the same
// handle; JSON frames from the browser become protocol lines, and relay
// lines come back as JSON frames.
//
// Endpoints:
//
//	GET /ws            login with a {"type":"login","username":...} frame
//	GET /ws/{username} login implied by the path
//	GET /status        counts and handles of both sides
//	GET /health        liveness
//
// A pair is torn down exactly once, whichever side goes first: both
// handle maps forget it, the relay connection says "exit" and closes,
// the WebSocket closes, and the other bridged users get a user_left
// frame. When the relay side went first, the browser is told the
// connection was lost before its socket closes.
//
// Writes to one WebSocket are serialized; gorilla/websocket allows only
// one concurrent writer per connection.
package bridge
