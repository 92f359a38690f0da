// Package cache provides the embedding cache used by the embedding generator.
package cache

import (
	"context"

	"github.com/hrygo/synapse/plugin/ai"
)

// Tier is a second-level embedding store consulted on an in-memory miss.
// Implementations must be safe for concurrent use.
type Tier interface {
	// Get returns the embedding stored under the normalized key.
	// A miss is reported as ok=false with a nil error.
	Get(ctx context.Context, key string) (emb ai.TextEmbedding, ok bool, err error)

	// Set stores the embedding under the normalized key.
	Set(ctx context.Context, key string, emb ai.TextEmbedding) error
}
