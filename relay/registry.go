// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"errors"
	"slices"
	"sync"
)

// ErrHandleTaken is returned by Register when the handle already has a
// live session.
var ErrHandleTaken = errors.New("relay: handle already registered")

// ErrRegistryClosed is returned by Register after Close.
var ErrRegistryClosed = errors.New("relay: registry closed")

// Registry maps handles to live sessions. At most one session holds a
// handle at any instant: Register checks and inserts under one lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// order lists registered handles oldest first, for the roster.
	order  []string
	closed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register claims handle for session.
func (r *Registry) Register(handle string, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	if _, taken := r.sessions[handle]; taken {
		return ErrHandleTaken
	}
	r.sessions[handle] = session
	r.order = append(r.order, handle)
	return nil
}

// Unregister releases handle if, and only if, it is still held by
// session, so a late cleanup cannot evict a newer session that reused
// the handle. It reports whether anything was removed.
func (r *Registry) Unregister(handle string, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[handle]; !ok || current != session {
		return false
	}
	delete(r.sessions, handle)
	if index := slices.Index(r.order, handle); index >= 0 {
		r.order = slices.Delete(r.order, index, index+1)
	}
	return true
}

// Lookup returns the live session for handle.
func (r *Registry) Lookup(handle string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[handle]
	return session, ok
}

// Handles returns a snapshot of registered handles in registration
// order.
func (r *Registry) Handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close refuses further registrations and closes the transport of every
// registered session. Sessions unregister themselves as their
// goroutines observe the closed transport.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
