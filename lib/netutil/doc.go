// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the small network helpers shared by the relay,
// the bridge, and the holding store client: classification of errors
// that mean "the peer went away", and bounded reads of HTTP response
// bodies.
package netutil
