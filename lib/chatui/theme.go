// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the client's color palette. Colors are ANSI 256-color codes
// for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// SenderColors are assigned to other users by hashing their
	// handle, so a sender keeps one color for the whole session.
	SenderColors []lipgloss.Color
	SelfColor    lipgloss.Color

	StoredAccent       lipgloss.Color
	NotificationAccent lipgloss.Color
	SystemText         lipgloss.Color
	ErrorText          lipgloss.Color

	HeaderForeground lipgloss.Color
	HeaderBackground lipgloss.Color
	HelpText         lipgloss.Color
}

// DefaultTheme is the built-in palette, tuned for dark terminals.
var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	SenderColors:       []lipgloss.Color{"39", "170", "214", "78", "141", "208"},
	SelfColor:          lipgloss.Color("250"),
	StoredAccent:       lipgloss.Color("179"),
	NotificationAccent: lipgloss.Color("81"),
	SystemText:         lipgloss.Color("245"),
	ErrorText:          lipgloss.Color("203"),
	HeaderForeground:   lipgloss.Color("230"),
	HeaderBackground:   lipgloss.Color("60"),
	HelpText:           lipgloss.Color("241"),
}

// SenderColor returns the color for a sender handle.
func (theme Theme) SenderColor(handle string) lipgloss.Color {
	if len(theme.SenderColors) == 0 {
		return theme.NormalText
	}
	hash := fnv.New32a()
	hash.Write([]byte(handle))
	return theme.SenderColors[hash.Sum32()%uint32(len(theme.SenderColors))]
}
