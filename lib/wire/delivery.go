// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	// StoredPrefix marks a delivery that came out of the holding store.
	StoredPrefix = "[Stored] "

	// MetadataSeparator introduces the JSON metadata suffix of a
	// delivery line.
	MetadataSeparator = " Metadata: "
)

// FormatDelivery renders m as a delivery line without terminator:
//
//	[sender][timestamp] body
//
// Non-chat kinds add a third group naming the kind in upper case, and a
// non-empty metadata map is appended as compact JSON after
// MetadataSeparator. The body is flattened to one line.
func FormatDelivery(m Message) string {
	var builder strings.Builder
	builder.WriteByte('[')
	builder.WriteString(m.Sender)
	builder.WriteString("][")
	builder.WriteString(m.Timestamp)
	builder.WriteByte(']')
	if m.Kind != KindChat && m.Kind.Envelope() {
		builder.WriteByte('[')
		builder.WriteString(strings.ToUpper(string(m.Kind)))
		builder.WriteByte(']')
	}
	builder.WriteByte(' ')
	builder.WriteString(FlattenBody(m.Body))
	if len(m.Metadata) > 0 {
		if encoded, err := json.Marshal(m.Metadata); err == nil {
			builder.WriteString(MetadataSeparator)
			builder.Write(encoded)
		}
	}
	return builder.String()
}

// FormatStored renders a held message: StoredPrefix followed by the
// delivery line.
func FormatStored(m Message) string {
	return StoredPrefix + FormatDelivery(m)
}

// Delivery is the consumer-side view of one line written by the relay.
type Delivery struct {
	Kind      Kind
	Stored    bool
	Sender    string
	Timestamp string
	Body      string
	Metadata  map[string]any
}

// ParseDelivery parses a relay line. Lines that do not follow the
// delivery grammar come back as KindSystem with Body set to the whole
// line. When the line has no timestamp group, now is used.
//
// Precedence: the "[Stored] " prefix (with its space, so a sender named
// "Stored" is not mistaken for it) is recognized first; then the sender
// group, which must open the line; then an adjacent timestamp group;
// then, only after a timestamp, an adjacent group naming a non-chat
// kind. Everything after the last consumed group is the body, minus one
// leading space. A trailing metadata suffix is split off only if it
// decodes as a JSON object.
func ParseDelivery(line string, now time.Time) Delivery {
	line = trimTerminator(line)
	system := Delivery{Kind: KindSystem, Timestamp: FormatTimestamp(now), Body: line}

	scanner := bracketScanner{input: line}
	delivery := Delivery{Kind: KindChat}
	if scanner.consumeLiteral(StoredPrefix) {
		delivery.Stored = true
	}

	sender, ok := scanner.group()
	if !ok || sender == "" {
		return system
	}
	delivery.Sender = sender

	if timestamp, ok := scanner.group(); ok {
		delivery.Timestamp = timestamp
		scanner.kindGroup(&delivery)
	} else {
		delivery.Timestamp = FormatTimestamp(now)
	}

	body := strings.TrimPrefix(scanner.rest(), " ")
	delivery.Body, delivery.Metadata = splitMetadata(body)
	return delivery
}

// bracketScanner walks a delivery line one bracket group at a time.
type bracketScanner struct {
	input    string
	position int
}

func (s *bracketScanner) consumeLiteral(literal string) bool {
	if strings.HasPrefix(s.input[s.position:], literal) {
		s.position += len(literal)
		return true
	}
	return false
}

// group consumes "[content]" at the current position. The group ends at
// the first "]"; a "[" inside it means the line is not a group sequence.
func (s *bracketScanner) group() (string, bool) {
	remaining := s.input[s.position:]
	if !strings.HasPrefix(remaining, "[") {
		return "", false
	}
	end := strings.IndexByte(remaining, ']')
	if end < 0 {
		return "", false
	}
	content := remaining[1:end]
	if strings.ContainsRune(content, '[') {
		return "", false
	}
	s.position += end + 1
	return content, true
}

// kindGroup consumes a group naming a non-chat envelope kind. Any other
// group is left in place to become part of the body.
func (s *bracketScanner) kindGroup(delivery *Delivery) {
	saved := s.position
	content, ok := s.group()
	if !ok {
		return
	}
	kind, err := ParseKind(content)
	if err != nil || kind == KindChat || content != strings.ToUpper(content) {
		s.position = saved
		return
	}
	delivery.Kind = kind
}

func (s *bracketScanner) rest() string {
	return s.input[s.position:]
}

// splitMetadata separates a trailing metadata suffix from body. The
// suffix is recognized only at the last separator and only if it is a
// JSON object.
func splitMetadata(body string) (string, map[string]any) {
	index := strings.LastIndex(body, MetadataSeparator)
	if index < 0 {
		if rest, found := strings.CutPrefix(body, strings.TrimPrefix(MetadataSeparator, " ")); found {
			if metadata, ok := decodeMetadata(rest); ok {
				return "", metadata
			}
		}
		return body, nil
	}
	metadata, ok := decodeMetadata(body[index+len(MetadataSeparator):])
	if !ok {
		return body, nil
	}
	return body[:index], metadata
}

func decodeMetadata(encoded string) (map[string]any, bool) {
	encoded = strings.TrimSpace(encoded)
	if !strings.HasPrefix(encoded, "{") || !strings.HasSuffix(encoded, "}") {
		return nil, false
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(encoded), &metadata); err != nil {
		return nil, false
	}
	return metadata, true
}
