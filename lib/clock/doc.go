// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time operations that Parley's periodic
// and rate-limited components depend on.
//
// The relay stamps message timestamps through a Clock; the weather
// station schedules its broadcasts and reboot delay through one; the
// responder bot enforces its minimum spacing between model calls
// through one. Production code uses [Real]. Tests use [Fake], whose
// time only moves when the test calls [FakeClock.Advance], so broadcast
// and rate-limit behavior can be asserted without sleeping.
//
// A typical test pairs a goroutine that waits on the clock with
// [FakeClock.WaitForTimers], which closes the race between that
// goroutine registering its timer and the test advancing time:
//
//	fake := clock.Fake(start)
//	go station.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(station.Interval)
package clock
