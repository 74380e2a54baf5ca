// Package memory provides in-memory implementations of the SDK's collaborator
// interfaces. The CursorStore uses a map[string]string with sync.RWMutex for
// thread-safe access; the EventSource keeps an ordered, cursor-addressable log
// of records. Both are suitable for examples, testing, and short-lived
// processes without persistent storage requirements.
package memory

import (
	"context"
	"sync"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
)

// CursorStore is an in-memory implementation of stellarwatch.CursorStore.
type CursorStore struct {
	cursors map[string]string
	mu      sync.RWMutex
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[string]string),
	}
}

// Load returns the cursor saved under key, or "" if none was saved.
func (s *CursorStore) Load(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursors[key], nil
}

// Save records cursor under key, replacing any previous value.
func (s *CursorStore) Save(ctx context.Context, key string, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[key] = cursor
	return nil
}

// Verify that CursorStore implements stellarwatch.CursorStore
var _ stellarwatch.CursorStore = (*CursorStore)(nil)
