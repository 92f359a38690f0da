package vector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hrygo/synapse/store"
)

// MockRemoteService is an in-memory store.RemoteVectorService for testing.
// QueryErr and UpsertErr, when set, fail the respective calls. Delay is
// applied to Query and honours context cancellation.
type MockRemoteService struct {
	mu         sync.RWMutex
	embeddings map[string][]float32
	queries    int
	upserts    int

	QueryErr  error
	UpsertErr error
	Delay     time.Duration
}

var _ store.RemoteVectorService = (*MockRemoteService)(nil)

// NewMockRemoteService creates a new MockRemoteService.
func NewMockRemoteService() *MockRemoteService {
	return &MockRemoteService{embeddings: make(map[string][]float32)}
}

// Upsert stores a vector.
func (m *MockRemoteService) Upsert(_ context.Context, nodeID string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserts++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.embeddings[nodeID] = vector
	return nil
}

// Query performs a similarity search over the stored vectors.
func (m *MockRemoteService) Query(ctx context.Context, vector []float32, topK int) ([]store.RemoteMatch, error) {
	m.mu.Lock()
	m.queries++
	delay, queryErr := m.Delay, m.QueryErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if queryErr != nil {
		return nil, queryErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]store.RemoteMatch, 0, len(m.embeddings))
	for nodeID, stored := range m.embeddings {
		results = append(results, store.RemoteMatch{
			NodeID:        nodeID,
			RawSimilarity: float32(CosineSimilarity(vector, stored)),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RawSimilarity != results[j].RawSimilarity {
			return results[i].RawSimilarity > results[j].RawSimilarity
		}
		return results[i].NodeID < results[j].NodeID
	})

	if topK >= 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Calls returns the number of Query and Upsert calls.
func (m *MockRemoteService) Calls() (queries, upserts int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries, m.upserts
}

// Has reports whether a vector is stored for the node.
func (m *MockRemoteService) Has(nodeID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.embeddings[nodeID]
	return ok
}
