// Package session provides a conversation-history collaborator for graph
// runs.
//
// A Store replaces process-wide mutable maps as the home for per-session
// history: it is created by the caller, injected through the execution
// context, and its lifecycle is entirely caller-controlled. Nodes read
// and append history through the interface, never through hidden globals.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Entry is one item of session history.
type Entry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// History is the ordered entries of one session.
type History []Entry

// Store holds per-session history.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the history for a session.
	// An unknown session yields an empty history, not an error.
	Get(ctx context.Context, sessionID string) (History, error)

	// Append adds entries to the end of a session's history,
	// creating the session if needed.
	Append(ctx context.Context, sessionID string, entries ...Entry) error

	// Clear removes a session's history.
	// Clearing an unknown session is not an error.
	Clear(ctx context.Context, sessionID string) error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("session store closed")

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]History
	closed   bool
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]History),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.sessions[sessionID]
	// Return a copy so callers cannot mutate stored history.
	out := make(History, len(history))
	copy(out, history)
	return out, nil
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, sessionID string, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.sessions[sessionID] = append(m.sessions[sessionID], entries...)
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.sessions, sessionID)
	return nil
}

// Close marks the store closed. Subsequent operations fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sessions = nil
	return nil
}
