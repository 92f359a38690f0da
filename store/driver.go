package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Node model related methods.
	CreateNode(ctx context.Context, create *Node) (*Node, error)
	GetNode(ctx context.Context, id string) (*Node, error)
	ListNodes(ctx context.Context, find *FindNode) ([]*Node, error)
	UpdateNodeContent(ctx context.Context, id string, content string) error
	DeleteNode(ctx context.Context, id string) error
	ListUnembedded(ctx context.Context, model string, limit int) ([]string, error)
	MarkEmbedded(ctx context.Context, id string, model string) error

	// Quota ledger related methods.
	RemainingQuota(ctx context.Context, account string) (int, error)
	ConsumeQuota(ctx context.Context, account string, amount int) error
	GrantQuota(ctx context.Context, account string, amount int) error
}
