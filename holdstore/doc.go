// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package holdstore keeps messages for handles that are not connected.
//
// The relay depends only on the [Store] interface: Append persists one
// message for its destination, and Drain returns every message held for
// a handle, in the order they were appended, while removing them in the
// same step. A message drained once is never returned again.
//
// Three implementations exist:
//
//   - [Memory] holds queues in process memory. The relay's tests and
//     single-process deployments use it.
//   - [SQLite] holds queues in a SQLite database through
//     lib/sqlitepool. Drain runs its read and delete inside one
//     IMMEDIATE transaction, so two concurrent drains for the same
//     handle cannot both see a message.
//   - [Client] speaks the holding store's HTTP API to a remote
//     parley-store process, which serves a [Handler] in front of one of
//     the other two.
//
// Failures reaching the store are reported wrapped in [ErrUnavailable]
// so callers can tell "could not save" apart from programming errors.
package holdstore
