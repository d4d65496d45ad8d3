// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot is the shared plumbing for automated relay participants.
// A [Session] is logged in to the relay under the bot's handle, feeds
// each delivery from another user to a handler, and sends replies
// directly through the relay or, when that is impossible or the reply
// carries metadata, through the holding store.
//
// The agents themselves live in subpackages: bot/weather and
// bot/responder.
package bot
