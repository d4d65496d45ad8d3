// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements Parley's line-oriented text protocol: the
// framing, the message envelope, and the grammar of the lines the relay
// writes to its clients.
//
// Every participant speaks this protocol. The relay reads commands and
// writes deliveries and notices; the WebSocket bridge and the bots sit
// on the other side of the same connection and parse what the relay
// writes. Keeping both directions in one package is what guarantees the
// two ends agree.
//
// # Framing
//
// A frame is one UTF-8 line terminated by "\n" (a preceding "\r" is
// stripped). [FrameReader] enforces [MaxFrameSize]: a longer line is
// discarded through its terminator and reported as [ErrFrameTooLong]
// rather than being split into several frames. The only unterminated
// frame in the protocol is the username prompt, which clients consume
// with [FrameReader.ReadPrompt].
//
// # Envelope
//
// [Message] is the immutable envelope the relay creates for every routed
// line and the holding store persists. Its [Kind] is an explicit tag
// that travels with the message from creation through delivery.
//
// # Delivery lines
//
// [FormatDelivery] renders a message as
//
//	[sender][timestamp] body
//	[sender][timestamp][NOTIFICATION] body Metadata: {"unit":"C"}
//
// and [FormatStored] adds the "[Stored] " prefix used for held messages.
// [ParseDelivery] is the inverse, a small tokenizer over the bracket
// groups. Lines that do not match the grammar are returned as
// [KindSystem] deliveries carrying the whole line, so nothing the relay
// writes is ever dropped by a consumer.
//
// # Commands
//
// [ClassifyCommand] turns an inbound line into one of exit, !check, a
// routed "DESTINATION: BODY" message, or an invalid line.
// [FormatRoute] is its inverse for clients.
package wire
