// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "strings"

// Command words recognized by the relay, compared case-insensitively.
const (
	CommandExit  = "exit"
	CommandCheck = "!check"
)

// CommandKind classifies an inbound line.
type CommandKind int

const (
	// CommandInvalid is a line with no route separator, or with an
	// empty destination.
	CommandInvalid CommandKind = iota
	CommandQuit
	CommandFetchHeld
	CommandRoute
)

func (k CommandKind) String() string {
	switch k {
	case CommandQuit:
		return "exit"
	case CommandFetchHeld:
		return "check"
	case CommandRoute:
		return "route"
	default:
		return "invalid"
	}
}

// Command is a classified inbound line. Destination and Body are set
// only for CommandRoute.
type Command struct {
	Kind        CommandKind
	Destination string
	Body        string
}

// ClassifyCommand interprets one frame from a client. The line is
// trimmed first; "exit" and "!check" match case-insensitively; any other
// line is split on its first ":" into a trimmed destination and body.
func ClassifyCommand(line string) Command {
	line = strings.TrimSpace(line)
	switch {
	case strings.EqualFold(line, CommandExit):
		return Command{Kind: CommandQuit}
	case strings.EqualFold(line, CommandCheck):
		return Command{Kind: CommandFetchHeld}
	}
	destination, body, found := strings.Cut(line, ":")
	if !found {
		return Command{Kind: CommandInvalid}
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return Command{Kind: CommandInvalid}
	}
	return Command{
		Kind:        CommandRoute,
		Destination: destination,
		Body:        strings.TrimSpace(body),
	}
}

// FormatRoute renders the client line that routes body to destination.
func FormatRoute(destination, body string) string {
	return destination + ": " + FlattenBody(body)
}
