// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by Parley's commands.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// New returns a logger writing to stderr. A terminal gets the text
// handler; pipes, files, and service managers get JSON lines. verbose
// lowers the level to debug, which is where per-message routing events
// are logged.
//
// Commands scope the result with With:
//
//	logger := logging.New(verbose).With("command", "parley-relay")
func New(verbose bool) *slog.Logger {
	return NewWithWriter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), verbose)
}

// NewWithWriter is New with the destination and terminal detection
// supplied by the caller.
func NewWithWriter(w io.Writer, terminal, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	if terminal {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// Discard returns a logger that drops everything. Tests use it when a
// component requires a logger but its output is not under test.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
