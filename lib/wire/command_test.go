// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"reflect"
	"testing"
)

func TestClassifyCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"exit", Command{Kind: CommandQuit}},
		{"  EXIT \r", Command{Kind: CommandQuit}},
		{"!check", Command{Kind: CommandFetchHeld}},
		{"!Check", Command{Kind: CommandFetchHeld}},
		{"bob: Hello Bob!", Command{Kind: CommandRoute, Destination: "bob", Body: "Hello Bob!"}},
		{" bob :  spaced  ", Command{Kind: CommandRoute, Destination: "bob", Body: "spaced"}},
		{"bob: time is 12:30", Command{Kind: CommandRoute, Destination: "bob", Body: "time is 12:30"}},
		{"bob:", Command{Kind: CommandRoute, Destination: "bob", Body: ""}},
		{"no separator here", Command{Kind: CommandInvalid}},
		{": no destination", Command{Kind: CommandInvalid}},
		{"", Command{Kind: CommandInvalid}},
		{"exit: now", Command{Kind: CommandRoute, Destination: "exit", Body: "now"}},
	}
	for _, test := range tests {
		got := ClassifyCommand(test.line)
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("ClassifyCommand(%q) = %+v, want %+v", test.line, got, test.want)
		}
	}
}

func TestFormatRouteRoundTrip(t *testing.T) {
	line := FormatRoute("bob", "multi\nline body")
	if line != "bob: multi line body" {
		t.Fatalf("FormatRoute = %q", line)
	}
	command := ClassifyCommand(line)
	if command.Kind != CommandRoute || command.Destination != "bob" || command.Body != "multi line body" {
		t.Errorf("ClassifyCommand(FormatRoute) = %+v", command)
	}
}

func TestParseRoster(t *testing.T) {
	handles, ok := ParseRoster(FormatRoster([]string{"alice", "bob"}) + "\n")
	if !ok {
		t.Fatal("ParseRoster rejected a roster line")
	}
	if !reflect.DeepEqual(handles, []string{"alice", "bob"}) {
		t.Errorf("handles = %v", handles)
	}

	handles, ok = ParseRoster(FormatRoster(nil))
	if !ok || len(handles) != 0 {
		t.Errorf("empty roster: handles = %v, ok = %v", handles, ok)
	}

	if _, ok := ParseRoster("[alice][ts] Connected! Users online: x"); ok {
		t.Error("ParseRoster accepted a delivery line")
	}
}

func TestValidateHandle(t *testing.T) {
	for _, handle := range []string{"alice", "thermometer1", "Bob Smith", "ünïcode"} {
		if err := ValidateHandle(handle); err != nil {
			t.Errorf("ValidateHandle(%q) = %v", handle, err)
		}
	}
	for _, handle := range []string{"", "a:b", "[x]", "x]"} {
		if err := ValidateHandle(handle); err == nil {
			t.Errorf("ValidateHandle(%q) accepted", handle)
		}
	}
}

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{
		"":             KindChat,
		"chat":         KindChat,
		"NOTIFICATION": KindNotification,
		"Command":      KindCommand,
		"subscription": KindSubscription,
	} {
		got, err := ParseKind(name)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", name, got, err, want)
		}
	}
	for _, name := range []string{"system", "urgent"} {
		if _, err := ParseKind(name); err == nil {
			t.Errorf("ParseKind(%q) accepted", name)
		}
	}
}
