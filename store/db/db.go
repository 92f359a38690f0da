package db

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/synapse/internal/profile"
	"github.com/hrygo/synapse/store"
	"github.com/hrygo/synapse/store/db/postgres"
	"github.com/hrygo/synapse/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// Nodes and the quota ledger live in SQLite on the device.
// The remote vector index lives in PostgreSQL with the pgvector extension.
//
// When adding new features:
// - Keep node persistence in SQLite only
// - The remote index stores vectors only, never node content
// ============================================================================

// NewDBDriver creates the node store driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	driver, err := sqlite.NewDB(profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}

// NewRemoteIndex connects to the remote vector index. It returns nil when no
// remote index is configured.
func NewRemoteIndex(ctx context.Context, profile *profile.Profile) (*postgres.VectorStore, error) {
	if !profile.IsRemoteEnabled() {
		return nil, nil
	}
	vs, err := postgres.NewVectorStore(ctx, profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect remote index")
	}
	return vs, nil
}
