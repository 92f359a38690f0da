package router

import (
	"context"
	"sync"

	"github.com/hrygo/synapse/store"
)

// MockQuotaLedger is an in-memory store.QuotaLedger for testing.
// Err, when set, fails every Consume call.
type MockQuotaLedger struct {
	mu        sync.Mutex
	remaining int
	consumed  []int

	Err error
}

var _ store.QuotaLedger = (*MockQuotaLedger)(nil)

// NewMockQuotaLedger creates a ledger holding remaining credits.
func NewMockQuotaLedger(remaining int) *MockQuotaLedger {
	return &MockQuotaLedger{remaining: remaining}
}

func (m *MockQuotaLedger) Remaining(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining, nil
}

func (m *MockQuotaLedger) Consume(_ context.Context, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consumed = append(m.consumed, amount)
	if m.Err != nil {
		return m.Err
	}
	if m.remaining < amount {
		return store.ErrInsufficientCredits
	}
	m.remaining -= amount
	return nil
}

// ConsumeCalls returns the amounts of every Consume call, in order.
func (m *MockQuotaLedger) ConsumeCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.consumed))
	copy(out, m.consumed)
	return out
}
