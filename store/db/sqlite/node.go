package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/synapse/store"
)

func (d *DB) CreateNode(ctx context.Context, create *store.Node) (*store.Node, error) {
	if create.ID == "" {
		create.ID = shortuuid.New()
	}
	if create.NodeType == "" {
		create.NodeType = "note"
	}
	if create.CreatedAt.IsZero() {
		create.CreatedAt = time.Now()
	}
	create.UpdatedAt = create.CreatedAt

	markers, err := json.Marshal(nonNilMarkers(create.EmotionalMarkers))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode emotional markers")
	}

	stmt := `INSERT INTO node (id, content, node_type, emotional_markers, created_ts, updated_ts, embedded_model)
		VALUES (` + placeholders(7) + `)`
	_, err = d.db.ExecContext(ctx, stmt,
		create.ID,
		create.Content,
		create.NodeType,
		string(markers),
		create.CreatedAt.Unix(),
		create.UpdatedAt.Unix(),
		create.EmbeddedModel,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create node")
	}
	return create, nil
}

func (d *DB) GetNode(ctx context.Context, id string) (*store.Node, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, content, node_type, emotional_markers, created_ts, updated_ts, embedded_model
		FROM node WHERE id = `+placeholder(1), id)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNodeNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get node %s", id)
	}
	return node, nil
}

func (d *DB) ListNodes(ctx context.Context, find *store.FindNode) ([]*store.Node, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find != nil && find.NodeType != nil {
		where, args = append(where, "node_type = "+placeholder(len(args)+1)), append(args, *find.NodeType)
	}

	query := `
		SELECT id, content, node_type, emotional_markers, created_ts, updated_ts, embedded_model
		FROM node
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id ASC`
	if find != nil && find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list nodes")
	}
	defer rows.Close()

	list := []*store.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan node")
		}
		list = append(list, node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateNodeContent replaces the content and clears the embedded mark so the
// next maintenance pass re-embeds the node.
func (d *DB) UpdateNodeContent(ctx context.Context, id string, content string) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE node SET content = `+placeholder(1)+`, updated_ts = `+placeholder(2)+`, embedded_model = '' WHERE id = `+placeholder(3),
		content, time.Now().Unix(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update node")
	}
	return requireAffected(result, id)
}

func (d *DB) DeleteNode(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM node WHERE id = `+placeholder(1), id)
	if err != nil {
		return errors.Wrap(err, "failed to delete node")
	}
	return requireAffected(result, id)
}

func (d *DB) ListUnembedded(ctx context.Context, model string, limit int) ([]string, error) {
	query := `SELECT id FROM node WHERE embedded_model != ` + placeholder(1) + ` ORDER BY created_ts ASC, id ASC`
	args := []any{model}
	if limit > 0 {
		query += " LIMIT " + placeholder(2)
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list unembedded nodes")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan node id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d *DB) MarkEmbedded(ctx context.Context, id string, model string) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE node SET embedded_model = `+placeholder(1)+` WHERE id = `+placeholder(2), model, id)
	if err != nil {
		return errors.Wrap(err, "failed to mark node embedded")
	}
	return requireAffected(result, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*store.Node, error) {
	var (
		node      store.Node
		markers   string
		createdTs int64
		updatedTs int64
	)
	if err := row.Scan(&node.ID, &node.Content, &node.NodeType, &markers, &createdTs, &updatedTs, &node.EmbeddedModel); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(markers), &node.EmotionalMarkers); err != nil {
		return nil, errors.Wrap(err, "failed to decode emotional markers")
	}
	node.CreatedAt = time.Unix(createdTs, 0)
	node.UpdatedAt = time.Unix(updatedTs, 0)
	return &node, nil
}

func requireAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return errors.Wrapf(store.ErrNodeNotFound, "node %s", id)
	}
	return nil
}

func nonNilMarkers(markers []string) []string {
	if markers == nil {
		return []string{}
	}
	return markers
}
