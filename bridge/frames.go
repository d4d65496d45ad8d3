// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parley-chat/parley/lib/wire"
)

// Frame types exchanged with WebSocket clients.
const (
	FrameLogin        = "login"
	FrameLoginSuccess = "login_success"
	FrameChat         = "chat"
	FrameCommand      = "command"
	FrameNotification = "notification"
	FrameSubscription = "subscription"
	FrameStored       = "stored"
	FrameSystem       = "system"
	FrameError        = "error"
	FrameUserJoined   = "user_joined"
	FrameUserLeft     = "user_left"
)

// NoticeConnectionLost is sent to the browser when the relay side of
// its pair closes first.
const NoticeConnectionLost = "Connection to chat server lost. Please reconnect."

// ClientFrame is a frame sent by a WebSocket client.
type ClientFrame struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`

	// Destination names the chat recipient. Recipient is the older
	// spelling and is used when Destination is empty.
	Destination string  `json:"destination,omitempty"`
	Recipient   string  `json:"recipient,omitempty"`
	Message     *string `json:"message,omitempty"`

	Command string `json:"command,omitempty"`
}

// Frame is a frame sent to a WebSocket client.
type Frame struct {
	Type        string         `json:"type"`
	Username    string         `json:"username,omitempty"`
	Sender      string         `json:"sender,omitempty"`
	Message     string         `json:"message,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Kind        string         `json:"kind,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OnlineUsers []string       `json:"online_users,omitempty"`
}

var errMissingDestination = errors.New("chat frame needs a destination")

// LineForFrame translates a client frame into the relay line it stands
// for. An error means the frame is not acceptable; the pair stays up
// and the client gets an error frame.
func LineForFrame(frame ClientFrame) (string, error) {
	switch frame.Type {
	case FrameChat:
		destination := strings.TrimSpace(frame.Destination)
		if destination == "" {
			destination = strings.TrimSpace(frame.Recipient)
		}
		if destination == "" {
			return "", errMissingDestination
		}
		if frame.Message == nil {
			return "", fmt.Errorf("chat frame needs a message")
		}
		return wire.FormatRoute(destination, *frame.Message), nil
	case FrameCommand:
		command := strings.TrimSpace(frame.Command)
		switch {
		case strings.EqualFold(command, wire.CommandCheck):
			return wire.CommandCheck, nil
		case strings.EqualFold(command, wire.CommandExit):
			return wire.CommandExit, nil
		}
		return "", fmt.Errorf("unsupported command %q", frame.Command)
	case FrameLogin:
		return "", fmt.Errorf("already logged in")
	case "":
		return "", fmt.Errorf("frame has no type")
	}
	return "", fmt.Errorf("unsupported frame type %q", frame.Type)
}

// FrameForLine translates one relay line into the frame shown to the
// client. Every line produces a frame; lines that are not deliveries
// become system frames.
func FrameForLine(line string, now time.Time) Frame {
	if roster, ok := wire.ParseRoster(line); ok {
		return Frame{Type: FrameLoginSuccess, OnlineUsers: roster}
	}

	delivery := wire.ParseDelivery(line, now)
	frame := Frame{
		Sender:    delivery.Sender,
		Message:   delivery.Body,
		Timestamp: delivery.Timestamp,
		Metadata:  delivery.Metadata,
	}
	switch {
	case delivery.Kind == wire.KindSystem:
		frame.Type = FrameSystem
	case delivery.Stored:
		frame.Type = FrameStored
		frame.Kind = string(delivery.Kind)
	default:
		frame.Type = string(delivery.Kind)
	}
	return frame
}

func errorFrame(message string, now time.Time) Frame {
	return Frame{Type: FrameError, Message: message, Timestamp: wire.FormatTimestamp(now)}
}
