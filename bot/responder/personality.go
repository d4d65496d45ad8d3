// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package responder

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed personalities.yaml
var defaultPersonalities []byte

// Personality is one voice the responder can answer in.
type Personality struct {
	// Prompt is the system prompt sent with every model request.
	Prompt string `yaml:"prompt"`

	// Description is shown to users by help and when switching.
	Description string `yaml:"description"`
}

// Personalities is the responder's table of voices.
type Personalities struct {
	Table map[string]Personality `yaml:"personalities"`

	// Rotation is the order the rotate command walks. Empty means every
	// personality in name order.
	Rotation []string `yaml:"rotation"`
}

// DefaultPersonalities returns the built-in table: happy, angry, and
// spanish.
func DefaultPersonalities() Personalities {
	personalities, err := ParsePersonalities(defaultPersonalities)
	if err != nil {
		panic("responder: built-in personalities: " + err.Error())
	}
	return personalities
}

// LoadPersonalities reads a personality table from a YAML file.
func LoadPersonalities(path string) (Personalities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Personalities{}, fmt.Errorf("responder: reading personalities: %w", err)
	}
	personalities, err := ParsePersonalities(data)
	if err != nil {
		return Personalities{}, fmt.Errorf("responder: %s: %w", path, err)
	}
	return personalities, nil
}

// ParsePersonalities decodes and validates a YAML personality table.
// Unknown fields are rejected.
func ParsePersonalities(data []byte) (Personalities, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var personalities Personalities
	if err := decoder.Decode(&personalities); err != nil {
		return Personalities{}, fmt.Errorf("parsing personalities: %w", err)
	}
	if err := personalities.Validate(); err != nil {
		return Personalities{}, err
	}
	if len(personalities.Rotation) == 0 {
		personalities.Rotation = personalities.Names()
	}
	return personalities, nil
}

// Validate checks that every personality has a prompt and that the
// rotation only names known personalities.
func (p Personalities) Validate() error {
	if len(p.Table) == 0 {
		return fmt.Errorf("no personalities defined")
	}
	for name, personality := range p.Table {
		if personality.Prompt == "" {
			return fmt.Errorf("personality %q has no prompt", name)
		}
	}
	for _, name := range p.Rotation {
		if _, ok := p.Table[name]; !ok {
			return fmt.Errorf("rotation names unknown personality %q", name)
		}
	}
	return nil
}

// Names returns the personality names in sorted order.
func (p Personalities) Names() []string {
	names := make([]string, 0, len(p.Table))
	for name := range p.Table {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// next returns the personality after current in the rotation. A
// personality outside the rotation moves to its start.
func (p Personalities) next(current string) string {
	index := slices.Index(p.Rotation, current)
	return p.Rotation[(index+1)%len(p.Rotation)]
}
