// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/parley-chat/parley/lib/wire"
)

func stringPointer(s string) *string { return &s }

func TestLineForFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   ClientFrame
		want    string
		wantErr bool
	}{
		{
			name:  "chat",
			frame: ClientFrame{Type: FrameChat, Destination: "bob", Message: stringPointer("Hello Bob!")},
			want:  "bob: Hello Bob!",
		},
		{
			name:  "legacy recipient",
			frame: ClientFrame{Type: FrameChat, Recipient: "bob", Message: stringPointer("hi")},
			want:  "bob: hi",
		},
		{
			name:  "destination wins over recipient",
			frame: ClientFrame{Type: FrameChat, Destination: "carol", Recipient: "bob", Message: stringPointer("hi")},
			want:  "carol: hi",
		},
		{
			name:  "empty message is allowed",
			frame: ClientFrame{Type: FrameChat, Destination: "bob", Message: stringPointer("")},
			want:  "bob: ",
		},
		{
			name:  "check command",
			frame: ClientFrame{Type: FrameCommand, Command: "!CHECK"},
			want:  wire.CommandCheck,
		},
		{
			name:  "exit command",
			frame: ClientFrame{Type: FrameCommand, Command: " Exit "},
			want:  wire.CommandExit,
		},
		{
			name:    "chat without destination",
			frame:   ClientFrame{Type: FrameChat, Message: stringPointer("hi")},
			wantErr: true,
		},
		{
			name:    "chat without message",
			frame:   ClientFrame{Type: FrameChat, Destination: "bob"},
			wantErr: true,
		},
		{
			name:    "unknown command",
			frame:   ClientFrame{Type: FrameCommand, Command: "reboot"},
			wantErr: true,
		},
		{
			name:    "second login",
			frame:   ClientFrame{Type: FrameLogin, Username: "alice"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			frame:   ClientFrame{Type: "typing"},
			wantErr: true,
		},
		{
			name:    "missing type",
			frame:   ClientFrame{},
			wantErr: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := LineForFrame(test.frame)
			if test.wantErr {
				if err == nil {
					t.Fatalf("LineForFrame() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LineForFrame: %v", err)
			}
			if got != test.want {
				t.Errorf("LineForFrame() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestFrameForLine(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)
	stamp := wire.FormatTimestamp(now)
	tests := []struct {
		name string
		line string
		want Frame
	}{
		{
			name: "roster",
			line: wire.FormatRoster([]string{"alice", "bob"}),
			want: Frame{Type: FrameLoginSuccess, OnlineUsers: []string{"alice", "bob"}},
		},
		{
			name: "chat",
			line: "[alice][2026-06-01T08:00:00.000000+00:00] Hello Bob!",
			want: Frame{Type: FrameChat, Sender: "alice", Timestamp: "2026-06-01T08:00:00.000000+00:00", Message: "Hello Bob!"},
		},
		{
			name: "stored chat",
			line: "[Stored] [alice][2026-06-01T08:00:00.000000+00:00] Hello Bob!",
			want: Frame{Type: FrameStored, Kind: "chat", Sender: "alice", Timestamp: "2026-06-01T08:00:00.000000+00:00", Message: "Hello Bob!"},
		},
		{
			name: "notification with metadata",
			line: `[thermometer1][2026-06-01T08:00:00.000000+00:00][NOTIFICATION] Temperature update Metadata: {"unit":"C"}`,
			want: Frame{
				Type:      FrameNotification,
				Sender:    "thermometer1",
				Timestamp: "2026-06-01T08:00:00.000000+00:00",
				Message:   "Temperature update",
				Metadata:  map[string]any{"unit": "C"},
			},
		},
		{
			name: "stored notification",
			line: "[Stored] [thermometer1][2026-06-01T08:00:00.000000+00:00][NOTIFICATION] Subscribed",
			want: Frame{Type: FrameStored, Kind: "notification", Sender: "thermometer1", Timestamp: "2026-06-01T08:00:00.000000+00:00", Message: "Subscribed"},
		},
		{
			name: "relay notice",
			line: wire.NoticeOffline("carol"),
			want: Frame{Type: FrameSystem, Timestamp: stamp, Message: wire.NoticeOffline("carol")},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := FrameForLine(test.line, now)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("FrameForLine(%q) mismatch (-want +got):\n%s", test.line, diff)
			}
		})
	}
}
