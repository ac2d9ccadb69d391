// Package journal provides append-only stores for tree history events.
// The journal is diagnostic data, not tree state: losing it never affects
// runtime semantics, and the tree never reads it back.
package journal

import (
	"context"
	"sync"

	"github.com/petrijr/arbor/pkg/api"
)

// MemoryStore is a simple, goroutine-safe JournalStore backed by a map of
// per-session slices. Best for tests and short-lived sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]api.TreeEvent
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]api.TreeEvent),
	}
}

// Ensure MemoryStore implements the interface.
var _ api.JournalStore = (*MemoryStore)(nil)

func (s *MemoryStore) AppendEvent(ctx context.Context, ev api.TreeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[ev.SessionID] = append(s.sessions[ev.SessionID], ev)
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, sessionID string) ([]api.TreeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.sessions[sessionID]
	out := make([]api.TreeEvent, len(events))
	copy(out, events)
	return out, nil
}

// NoopStore discards all events.
type NoopStore struct{}

func (NoopStore) AppendEvent(ctx context.Context, ev api.TreeEvent) error { return nil }
func (NoopStore) ListEvents(ctx context.Context, sessionID string) ([]api.TreeEvent, error) {
	return nil, nil
}
