// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags what a message carries. Stored and routed messages use one
// of the four envelope kinds; [KindSystem] only appears on the parsing
// side, for relay lines that are not deliveries.
type Kind string

const (
	KindChat         Kind = "chat"
	KindCommand      Kind = "command"
	KindNotification Kind = "notification"
	KindSubscription Kind = "subscription"

	// KindSystem marks a protocol notice or an unrecognized line passed
	// through verbatim. It is never stored or routed.
	KindSystem Kind = "system"
)

// ParseKind maps a kind name to an envelope kind. Matching is
// case-insensitive because delivery lines carry kinds in upper case.
// An empty name is chat. KindSystem is rejected: it is not an envelope
// kind.
func ParseKind(name string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case "", KindChat:
		return KindChat, nil
	case KindCommand:
		return KindCommand, nil
	case KindNotification:
		return KindNotification, nil
	case KindSubscription:
		return KindSubscription, nil
	}
	return "", fmt.Errorf("wire: unknown message kind %q", name)
}

// Envelope reports whether k can be carried by a stored or routed
// message.
func (k Kind) Envelope() bool {
	switch k {
	case KindChat, KindCommand, KindNotification, KindSubscription:
		return true
	}
	return false
}

// TimestampLayout renders timestamps in UTC with microsecond precision
// and an explicit "+00:00" offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// FormatTimestamp renders t in [TimestampLayout], converted to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Message is the envelope for one directed message. The JSON field
// names are the holding store's HTTP contract.
//
// Messages are values: the relay builds one per routed line and hands
// copies to the destination's session or to the store. Metadata must be
// treated as read-only once the message is built.
type Message struct {
	// ID is assigned by the holding store when the message is
	// appended. Empty for messages that were delivered directly.
	ID string `json:"id,omitempty"`

	Sender      string         `json:"sender"`
	Destination string         `json:"destination"`
	Body        string         `json:"message"`
	Timestamp   string         `json:"timestamp"`
	Kind        Kind           `json:"type"`
	Metadata    map[string]any `json:"metadata"`
}

// NewMessage builds a message stamped with now. A nil metadata map is
// replaced by an empty one so the JSON form is always an object.
func NewMessage(sender, destination, body string, kind Kind, metadata map[string]any, now time.Time) Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Message{
		Sender:      sender,
		Destination: destination,
		Body:        body,
		Timestamp:   FormatTimestamp(now),
		Kind:        kind,
		Metadata:    metadata,
	}
}

// Validate checks the fields the relay and the store depend on.
func (m Message) Validate() error {
	if m.Sender == "" {
		return fmt.Errorf("wire: message sender is required")
	}
	if m.Destination == "" {
		return fmt.Errorf("wire: message destination is required")
	}
	if !m.Kind.Envelope() {
		return fmt.Errorf("wire: message kind %q cannot be stored", m.Kind)
	}
	return nil
}

// ValidateHandle rejects handles that the delivery grammar cannot carry:
// empty handles, and handles containing brackets, colons, or line
// breaks.
func ValidateHandle(handle string) error {
	if handle == "" {
		return fmt.Errorf("wire: handle is empty")
	}
	if strings.ContainsAny(handle, "[]:\r\n") {
		return fmt.Errorf("wire: handle %q contains a reserved character", handle)
	}
	return nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// FlattenBody collapses line breaks to spaces so a body fits in one
// frame.
func FlattenBody(body string) string {
	return lineBreaks.Replace(body)
}
