// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration holds end-to-end tests that run the whole stack in
// one process: the SQLite holding store behind its HTTP API, the relay,
// the WebSocket bridge, and the bots, all on loopback.
package integration
