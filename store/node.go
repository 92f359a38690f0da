package store

import (
	"context"
	"time"
)

// Node is a short text note. The store owns nodes; the retrieval engine only
// references them by ID and keeps transient copies while embedding.
type Node struct {
	ID               string
	Content          string
	NodeType         string
	EmotionalMarkers []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// EmbeddedModel is the model version the node was last embedded with, "" if never.
	EmbeddedModel string
}

// HasEmotionalMarker reports whether the node carries any emotional marker.
func (n *Node) HasEmotionalMarker() bool {
	return len(n.EmotionalMarkers) > 0
}

// IsEmbeddedWith reports whether the node is embedded with the given model version.
func (n *Node) IsEmbeddedWith(model string) bool {
	return n.EmbeddedModel != "" && n.EmbeddedModel == model
}

// FindNode is the find condition for nodes.
type FindNode struct {
	NodeType *string
	Limit    int
}

// GetNode returns the node with the given ID, or ErrNodeNotFound.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	return s.driver.GetNode(ctx, id)
}

// CreateNode creates a node.
func (s *Store) CreateNode(ctx context.Context, create *Node) (*Node, error) {
	return s.driver.CreateNode(ctx, create)
}

// ListNodes lists nodes.
func (s *Store) ListNodes(ctx context.Context, find *FindNode) ([]*Node, error) {
	return s.driver.ListNodes(ctx, find)
}

// UpdateNodeContent replaces node content and clears its embedded mark.
func (s *Store) UpdateNodeContent(ctx context.Context, id string, content string) error {
	return s.driver.UpdateNodeContent(ctx, id, content)
}

// DeleteNode deletes a node.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	return s.driver.DeleteNode(ctx, id)
}

// ListUnembedded returns IDs of nodes not embedded with the given model version.
func (s *Store) ListUnembedded(ctx context.Context, model string) ([]string, error) {
	return s.driver.ListUnembedded(ctx, model, s.unembeddedLimit)
}

// MarkEmbedded records that the node is embedded with the given model version.
func (s *Store) MarkEmbedded(ctx context.Context, id string, model string) error {
	return s.driver.MarkEmbedded(ctx, id, model)
}
