// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/parley-chat/parley/lib/wire"
)

// clockLayout is how timestamps are shown in the scrollback.
const clockLayout = "15:04:05"

// renderDelivery formats one delivery as a scrollback line.
func renderDelivery(theme Theme, delivery wire.Delivery, location *time.Location) string {
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	if delivery.Kind == wire.KindSystem {
		return lipgloss.NewStyle().Foreground(theme.SystemText).Italic(true).Render("* " + delivery.Body)
	}

	var line strings.Builder
	line.WriteString(faint.Render(shortTime(delivery.Timestamp, location)))
	line.WriteByte(' ')
	if delivery.Stored {
		line.WriteString(lipgloss.NewStyle().Foreground(theme.StoredAccent).Render("[held]"))
		line.WriteByte(' ')
	}
	if delivery.Kind != wire.KindChat {
		line.WriteString(lipgloss.NewStyle().Foreground(theme.NotificationAccent).
			Render("[" + string(delivery.Kind) + "]"))
		line.WriteByte(' ')
	}
	line.WriteString(lipgloss.NewStyle().Foreground(theme.SenderColor(delivery.Sender)).Bold(true).
		Render(delivery.Sender + ":"))
	line.WriteByte(' ')
	line.WriteString(lipgloss.NewStyle().Foreground(theme.NormalText).Render(delivery.Body))
	if len(delivery.Metadata) > 0 {
		line.WriteByte(' ')
		line.WriteString(faint.Render(formatMetadata(delivery.Metadata)))
	}
	return line.String()
}

// renderOutgoing echoes a line the user sent.
func renderOutgoing(theme Theme, line string, now time.Time, location *time.Location) string {
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	text := line
	command := wire.ClassifyCommand(line)
	if command.Kind == wire.CommandRoute {
		text = "-> " + command.Destination + ": " + command.Body
	}
	return faint.Render(now.In(location).Format(clockLayout)) + " " +
		lipgloss.NewStyle().Foreground(theme.SelfColor).Render(text)
}

func renderError(theme Theme, message string) string {
	return lipgloss.NewStyle().Foreground(theme.ErrorText).Render("! " + message)
}

// shortTime shows a delivery timestamp as a local wall-clock time, or
// the raw text when it does not parse.
func shortTime(timestamp string, location *time.Location) string {
	parsed, err := time.Parse(wire.TimestampLayout, timestamp)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, timestamp)
	}
	if err != nil {
		return timestamp
	}
	return parsed.In(location).Format(clockLayout)
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(metadata map[string]any) string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+formatValue(metadata[key]))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func formatValue(value any) string {
	switch value := value.(type) {
	case string:
		return value
	case float64:
		return fmt.Sprintf("%g", value)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}
