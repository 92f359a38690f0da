package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/synapse/internal/profile"
)

// ============================================================================
// POSTGRESQL REMOTE VECTOR INDEX
// ============================================================================
// PostgreSQL with the pgvector extension hosts the remote, cloud-side vector
// index. It may hold more vectors than the on-device index (other devices
// push into it too) and answers raw, unranked top-K cosine queries.
// Ranking, highlighting and filtering stay in the retrieval engine.
// ============================================================================

// VectorStore implements store.RemoteVectorService on top of pgvector.
type VectorStore struct {
	db         *sql.DB
	model      string
	dimensions int
}

// NewVectorStore opens the remote index described by profile.RemoteDSN.
func NewVectorStore(ctx context.Context, profile *profile.Profile) (*VectorStore, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.RemoteDSN == "" {
		return nil, errors.New("remote dsn required")
	}

	db, err := sql.Open("postgres", profile.RemoteDSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open remote vector database")
	}

	// Configure connection pool for single-user personal assistant
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping remote vector database")
	}

	vs := &VectorStore{
		db:         db,
		model:      profile.EmbeddingModel,
		dimensions: profile.EmbeddingDimensions,
	}
	if err := vs.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("remote vector index ready", "model", vs.model, "dimensions", vs.dimensions)
	return vs, nil
}

func (v *VectorStore) GetDB() *sql.DB {
	return v.db
}

func (v *VectorStore) Close() error {
	return v.db.Close()
}

func (v *VectorStore) migrate(ctx context.Context) error {
	if v.dimensions <= 0 {
		return errors.Errorf("invalid embedding dimensions %d", v.dimensions)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS node_vector (
			node_id    TEXT NOT NULL,
			model      TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			updated_ts BIGINT NOT NULL,
			PRIMARY KEY (node_id, model)
		)`, v.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := v.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate remote vector schema")
		}
	}
	return nil
}
