package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/synapse/internal/profile"
	"github.com/hrygo/synapse/store"
)

// ============================================================================
// SQLITE NODE STORE
// ============================================================================
// SQLite holds the nodes owned by this installation and the quota ledger.
// It never stores vectors: the local index is rebuilt from the embedding
// model and the remote index lives in PostgreSQL (pgvector).
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the sqlite database at profile.DSN and applies the schema.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	dsn := profile.DSN + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY on writes.
	sqliteDB.SetMaxOpenConns(1)

	driver := &DB{
		db:      sqliteDB,
		profile: profile,
	}
	if err := driver.Migrate(context.Background()); err != nil {
		sqliteDB.Close()
		return nil, err
	}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type='table' AND name='node')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// Migrate creates the schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS node (
			id                TEXT PRIMARY KEY,
			content           TEXT NOT NULL,
			node_type         TEXT NOT NULL DEFAULT 'note',
			emotional_markers TEXT NOT NULL DEFAULT '[]',
			created_ts        INTEGER NOT NULL,
			updated_ts        INTEGER NOT NULL,
			embedded_model    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_embedded_model ON node (embedded_model)`,
		`CREATE TABLE IF NOT EXISTS quota_ledger (
			account    TEXT PRIMARY KEY,
			remaining  INTEGER NOT NULL DEFAULT 0 CHECK (remaining >= 0),
			updated_ts INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate sqlite schema")
		}
	}
	return nil
}
