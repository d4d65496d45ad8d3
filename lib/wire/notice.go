// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"strings"
)

// Fixed relay lines. Except for the prompt, these are written as frames
// (the writer appends the terminator).
const (
	HandshakePrompt     = "Enter your username: "
	NoticeHandleTaken   = "Username already taken. Disconnecting..."
	NoticeInvalidFormat = "Invalid format. Use: TO_USERNAME: MESSAGE"

	// NoticeFetchUnavailable answers a handshake or !check when the
	// holding store cannot be reached.
	NoticeFetchUnavailable = "Could not retrieve stored messages: holding store unavailable."

	// RosterPrefix starts the line sent after a successful handshake.
	RosterPrefix = "Connected! Users online: "
)

// NoticeOffline tells a sender that its message was stored because the
// destination has no live session.
func NoticeOffline(destination string) string {
	return fmt.Sprintf("User '%s' is offline. Message saved.", destination)
}

// NoticeUndeliverable tells a sender that writing to the destination's
// live session failed and the message was stored instead.
func NoticeUndeliverable(destination string) string {
	return fmt.Sprintf("Message to '%s' couldn't be delivered. Message saved.", destination)
}

// NoticeStoreUnavailable tells a sender that its message could be
// neither delivered nor stored.
func NoticeStoreUnavailable(destination string) string {
	return fmt.Sprintf("Message to '%s' could not be saved: holding store unavailable.", destination)
}

// NoticeInvalidHandle rejects a handshake whose handle the protocol
// cannot carry.
func NoticeInvalidHandle(handle string) string {
	return fmt.Sprintf("Invalid username %q. Disconnecting...", handle)
}

// NoticeFrameTooLong answers a line that exceeded MaxFrameSize.
func NoticeFrameTooLong() string {
	return fmt.Sprintf("Message too long (limit %d bytes). Discarded.", MaxFrameSize)
}

// FormatRoster renders the post-handshake roster line.
func FormatRoster(handles []string) string {
	return RosterPrefix + strings.Join(handles, ", ")
}

// ParseRoster extracts the handles from a roster line. The second result
// is false when line is not a roster line.
func ParseRoster(line string) ([]string, bool) {
	rest, found := strings.CutPrefix(trimTerminator(line), strings.TrimSpace(RosterPrefix))
	if !found {
		return nil, false
	}
	handles := []string{}
	for _, handle := range strings.Split(rest, ",") {
		handle = strings.TrimSpace(handle)
		if handle != "" {
			handles = append(handles, handle)
		}
	}
	return handles, true
}
