// Package embedding keeps the local vector index in step with the node store.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/synapse/plugin/ai"
	"github.com/hrygo/synapse/plugin/ai/vector"
	"github.com/hrygo/synapse/store"
)

const (
	// DefaultInterval is the pause between background passes.
	DefaultInterval = 2 * time.Minute
	// DefaultBatchSize is the number of nodes embedded together.
	DefaultBatchSize = 10
)

// Embedder generates embeddings in bounded batches.
type Embedder interface {
	Version() string
	EmbedBatch(ctx context.Context, texts []string) map[string]ai.TextEmbedding
}

// Runner embeds nodes and records them in the local index, the remote index
// when configured, and the node store.
type Runner struct {
	nodes     store.NodeStore
	embedder  Embedder
	index     *vector.LocalIndex
	remote    store.RemoteVectorService
	interval  time.Duration
	batchSize int
}

// Option configures a Runner.
type Option func(*Runner)

// WithRemote pushes every new embedding to the remote vector service.
func WithRemote(remote store.RemoteVectorService) Option {
	return func(r *Runner) {
		r.remote = remote
	}
}

// WithInterval sets the pause between background passes.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize sets the number of nodes embedded together.
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewRunner creates an index maintenance runner.
func NewRunner(nodes store.NodeStore, embedder Embedder, index *vector.LocalIndex, opts ...Option) *Runner {
	r := &Runner{
		nodes:     nodes,
		embedder:  embedder,
		index:     index,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report counts the outcome of one pass.
type Report struct {
	Indexed int
	Skipped int
	Failed  int
}

func (rp *Report) add(other Report) {
	rp.Indexed += other.Indexed
	rp.Skipped += other.Skipped
	rp.Failed += other.Failed
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	if _, err := r.RunOnce(ctx); err != nil {
		slog.Error("failed to index nodes", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				slog.Error("failed to index nodes", "error", err)
			}
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce indexes every node the store reports as not embedded with the
// current model version.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	version := r.embedder.Version()
	ids, err := r.nodes.ListUnembedded(ctx, version)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list unembedded nodes: %w", err)
	}
	if len(ids) == 0 {
		return Report{}, nil
	}

	var report Report
	nodes := make([]*store.Node, 0, len(ids))
	for _, id := range ids {
		node, err := r.nodes.GetNode(ctx, id)
		if err != nil {
			slog.Warn("failed to load node for embedding", "nodeID", id, "error", err)
			report.Failed++
			continue
		}
		nodes = append(nodes, node)
	}

	report.add(r.EnsureIndexed(ctx, nodes))
	return report, nil
}

// EnsureIndexed embeds the nodes not yet indexed with the current model
// version, in batches. A failed node is logged and left unmarked; the rest of
// its batch continues.
func (r *Runner) EnsureIndexed(ctx context.Context, nodes []*store.Node) Report {
	var report Report

	pending := make([]*store.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if r.isCurrent(n) {
			report.Skipped++
			continue
		}
		pending = append(pending, n)
	}
	if len(pending) == 0 {
		return report
	}

	slog.Info("processing nodes for embedding", "count", len(pending))

	for i := 0; i < len(pending); i += r.batchSize {
		select {
		case <-ctx.Done():
			slog.Info("embedding processing cancelled", "processed", i, "total", len(pending))
			report.Failed += len(pending) - i
			return report
		default:
		}

		end := min(i+r.batchSize, len(pending))
		batch := r.processBatch(ctx, pending[i:end])
		report.add(batch)
		slog.Info("batch processed",
			"indexed", batch.Indexed,
			"failed", batch.Failed,
			"progress", fmt.Sprintf("%d/%d", end, len(pending)))
	}
	return report
}

// isCurrent reports whether the node is marked with the current version and
// its vector is present in the local index.
func (r *Runner) isCurrent(n *store.Node) bool {
	version := r.embedder.Version()
	if !n.IsEmbeddedWith(version) {
		return false
	}
	iv, ok := r.index.Get(n.ID)
	return ok && iv.Embedding.ModelVersion == version
}

func (r *Runner) processBatch(ctx context.Context, nodes []*store.Node) Report {
	var report Report

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = ai.PlainText(n.Content)
	}
	embeddings := r.embedder.EmbedBatch(ctx, nonEmpty(texts))

	for i, n := range nodes {
		if texts[i] == "" {
			slog.Warn("node has no text to embed", "nodeID", n.ID)
			report.Failed++
			continue
		}
		emb, ok := embeddings[texts[i]]
		if !ok {
			report.Failed++
			continue
		}
		if err := r.record(ctx, n, emb); err != nil {
			slog.Error("failed to store embedding", "nodeID", n.ID, "error", err)
			report.Failed++
			continue
		}
		report.Indexed++
	}
	return report
}

// record stores one embedding. The node is marked embedded only after every
// configured index holds it.
func (r *Runner) record(ctx context.Context, n *store.Node, emb ai.TextEmbedding) error {
	if err := r.index.Upsert(n.ID, emb); err != nil {
		return err
	}
	if r.remote != nil {
		if err := r.remote.Upsert(ctx, n.ID, emb.Vector); err != nil {
			return fmt.Errorf("remote upsert: %w", err)
		}
	}
	if err := r.nodes.MarkEmbedded(ctx, n.ID, emb.ModelVersion); err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	n.EmbeddedModel = emb.ModelVersion
	return nil
}

func nonEmpty(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
