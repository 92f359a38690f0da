package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/synapse/store"
)

// placeholder returns a placeholder for PostgreSQL ($n)
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// Upsert inserts or replaces the vector of a node for the configured model.
func (v *VectorStore) Upsert(ctx context.Context, nodeID string, vector []float32) error {
	if len(vector) != v.dimensions {
		return errors.Errorf("vector dimension %d does not match index dimension %d", len(vector), v.dimensions)
	}

	stmt := `
		INSERT INTO node_vector (node_id, model, embedding, updated_ts)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `)
		ON CONFLICT (node_id, model)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts`

	_, err := v.db.ExecContext(ctx, stmt, nodeID, v.model, pgvector.NewVector(vector), time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, "failed to upsert node vector")
	}
	return nil
}

// Delete removes the vector of a node.
func (v *VectorStore) Delete(ctx context.Context, nodeID string) error {
	_, err := v.db.ExecContext(ctx, `DELETE FROM node_vector WHERE node_id = `+placeholder(1), nodeID)
	if err != nil {
		return errors.Wrap(err, "failed to delete node vector")
	}
	return nil
}

// Query returns the topK nearest vectors by cosine similarity.
// The <=> operator computes cosine distance (1 - cosine_similarity), so
// results come back most similar first.
func (v *VectorStore) Query(ctx context.Context, vector []float32, topK int) ([]store.RemoteMatch, error) {
	if topK <= 0 {
		topK = 50
	}

	query := `
		SELECT node_id, 1 - (embedding <=> ` + placeholder(1) + `) AS score
		FROM node_vector
		WHERE model = ` + placeholder(2) + `
		ORDER BY embedding <=> ` + placeholder(1) + `
		LIMIT ` + placeholder(3)

	rows, err := v.db.QueryContext(ctx, query, pgvector.NewVector(vector), v.model, topK)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query node vectors")
	}
	defer rows.Close()

	matches := make([]store.RemoteMatch, 0, topK)
	for rows.Next() {
		var m store.RemoteMatch
		if err := rows.Scan(&m.NodeID, &m.RawSimilarity); err != nil {
			return nil, errors.Wrap(err, "failed to scan node vector match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

var _ store.RemoteVectorService = (*VectorStore)(nil)
