package store

import (
	"context"
	"errors"
)

var (
	// ErrNodeNotFound is returned when a node does not exist.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInsufficientCredits is returned by QuotaLedger.Consume when the balance is too low.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// NodeStore is the persistence collaborator that owns nodes.
type NodeStore interface {
	GetNode(ctx context.Context, id string) (*Node, error)
	ListUnembedded(ctx context.Context, model string) ([]string, error)
	MarkEmbedded(ctx context.Context, id string, model string) error
}

// QuotaLedger is the credit ledger consulted before remote calls.
type QuotaLedger interface {
	Remaining(ctx context.Context) (int, error)
	Consume(ctx context.Context, amount int) error
}

// RemoteMatch is a raw, unranked candidate returned by the remote vector service.
type RemoteMatch struct {
	NodeID        string
	RawSimilarity float32
}

// RemoteVectorService is the cloud-hosted vector index.
type RemoteVectorService interface {
	Query(ctx context.Context, vector []float32, topK int) ([]RemoteMatch, error)
	Upsert(ctx context.Context, nodeID string, vector []float32) error
}

// Feature flag names.
const (
	FlagBYOK             = "byok"
	FlagMultiModalSearch = "multimodal_search"
	FlagProxyDisabled    = "proxy_disabled"
)

// FeatureFlags answers whether a named feature is enabled.
type FeatureFlags interface {
	IsEnabled(flag string) bool
}

// NetworkState is the connectivity reported by a NetworkMonitor.
type NetworkState int

const (
	NetworkUnknown NetworkState = iota
	NetworkOnline
	NetworkOffline
)

func (s NetworkState) String() string {
	switch s {
	case NetworkOnline:
		return "online"
	case NetworkOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// NetworkMonitor reports the current connectivity.
type NetworkMonitor interface {
	CurrentState() NetworkState
}
