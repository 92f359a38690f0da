// Package timeout defines centralized timeout constants for retrieval operations.
package timeout

import "time"

const (
	// EmbeddingTimeout bounds one embedding generation, token fallback included.
	EmbeddingTimeout = 30 * time.Second

	// RemoteQueryTimeout bounds one call to the remote vector index.
	RemoteQueryTimeout = 5 * time.Second

	// QuotaTimeout bounds one call to the quota ledger.
	QuotaTimeout = 2 * time.Second

	// CircuitOpenTimeout is how long an open remote circuit rejects calls
	// before letting a probe through.
	CircuitOpenTimeout = 30 * time.Second
)
