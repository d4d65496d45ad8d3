// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package holdstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/lib/wire"
)

// Store is a durable per-handle queue of undelivered messages.
type Store interface {
	// Append persists message under message.Destination.
	Append(ctx context.Context, message wire.Message) error

	// Drain returns and removes every message held for handle, oldest
	// first. An empty queue yields an empty slice and no error.
	Drain(ctx context.Context, handle string) ([]wire.Message, error)
}

// ErrUnavailable wraps every failure to reach the backing store.
var ErrUnavailable = errors.New("holdstore: store unavailable")

// StatusError is a non-2xx answer from the holding store's HTTP API. It
// unwraps to ErrUnavailable.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("holdstore: %s: HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnavailable }

// assignID gives message a fresh identifier unless it already has one.
func assignID(message wire.Message) wire.Message {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	return message
}

// Memory is an in-process Store. The zero value is ready to use.
type Memory struct {
	mu     sync.Mutex
	queues map[string][]wire.Message
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, message wire.Message) error {
	if err := message.Validate(); err != nil {
		return fmt.Errorf("holdstore: append: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queues == nil {
		m.queues = make(map[string][]wire.Message)
	}
	m.queues[message.Destination] = append(m.queues[message.Destination], assignID(message))
	return nil
}

// Drain implements Store.
func (m *Memory) Drain(_ context.Context, handle string) ([]wire.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.queues[handle]
	delete(m.queues, handle)
	if held == nil {
		return []wire.Message{}, nil
	}
	return held, nil
}

// Pending reports how many messages are held for handle.
func (m *Memory) Pending(handle string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[handle])
}
