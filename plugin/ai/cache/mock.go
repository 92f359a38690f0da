package cache

import (
	"context"
	"sync"

	"github.com/hrygo/synapse/plugin/ai"
)

// MockTier is an in-memory implementation of Tier for testing.
// Err, when set, is returned by every call.
type MockTier struct {
	mu    sync.RWMutex
	store map[string]ai.TextEmbedding
	gets  int
	sets  int

	Err error
}

var _ Tier = (*MockTier)(nil)

// NewMockTier creates a new MockTier.
func NewMockTier() *MockTier {
	return &MockTier{store: make(map[string]ai.TextEmbedding)}
}

func (m *MockTier) Get(_ context.Context, key string) (ai.TextEmbedding, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.Err != nil {
		return ai.TextEmbedding{}, false, m.Err
	}
	emb, ok := m.store[key]
	return emb, ok, nil
}

func (m *MockTier) Set(_ context.Context, key string, emb ai.TextEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.Err != nil {
		return m.Err
	}
	m.store[key] = emb
	return nil
}

// Calls returns the number of Get and Set calls.
func (m *MockTier) Calls() (gets, sets int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gets, m.sets
}

// Len returns the number of stored entries.
func (m *MockTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
