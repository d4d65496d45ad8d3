// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared across Parley packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern, so these helpers are the only place
// tests wait on the wall clock. [UniqueID] produces distinct handles
// and message bodies for tests that share a relay.
//
// Helpers fail the test with t.Fatalf instead of returning errors.
package testutil
