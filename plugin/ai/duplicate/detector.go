// Package duplicate finds stored notes that a new note repeats or relates to.
package duplicate

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hrygo/synapse/plugin/ai"
	"github.com/hrygo/synapse/plugin/ai/vector"
	"github.com/hrygo/synapse/store"
)

// Thresholds for duplicate detection.
const (
	DuplicateThreshold = 0.9 // >90% = duplicate
	RelatedThreshold   = 0.7 // 70-90% = related
	DefaultTopK        = 5
)

// Similarity levels.
const (
	LevelDuplicate = "duplicate"
	LevelRelated   = "related"
)

// Weights for similarity calculation.
type Weights struct {
	Vector        float64
	MarkerOverlap float64
	TimeProx      float64
}

// DefaultWeights are the default weights for similarity calculation.
var DefaultWeights = Weights{
	Vector:        0.5,
	MarkerOverlap: 0.3,
	TimeProx:      0.2,
}

// Embedder produces the embedding of the new note.
type Embedder interface {
	Embed(ctx context.Context, text string) (ai.TextEmbedding, error)
}

// DetectRequest contains input for duplicate detection.
type DetectRequest struct {
	Content          string   `json:"content"`
	EmotionalMarkers []string `json:"emotional_markers,omitempty"`
	// ExcludeID skips the note itself when it is already indexed.
	ExcludeID string `json:"exclude_id,omitempty"`
	TopK      int    `json:"top_k,omitempty"` // default 5
}

// DetectResponse contains detection results.
type DetectResponse struct {
	HasDuplicate bool          `json:"has_duplicate"`
	HasRelated   bool          `json:"has_related"`
	Duplicates   []SimilarNode `json:"duplicates,omitempty"`
	Related      []SimilarNode `json:"related,omitempty"`
	LatencyMs    int64         `json:"latency_ms"`
}

// SimilarNode represents a stored note similar to the input.
type SimilarNode struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Snippet       string     `json:"snippet"`
	Similarity    float64    `json:"similarity"`
	SharedMarkers []string   `json:"shared_markers,omitempty"`
	Level         string     `json:"level"`
	Breakdown     *Breakdown `json:"breakdown,omitempty"`
}

// Breakdown shows how similarity was calculated.
type Breakdown struct {
	Vector        float64 `json:"vector"`
	MarkerOverlap float64 `json:"marker_overlap"`
	TimeProx      float64 `json:"time_prox"`
}

// Detector scores a new note against the local index.
type Detector struct {
	embedder Embedder
	index    *vector.LocalIndex
	nodes    store.NodeStore
	weights  Weights
	now      func() time.Time
}

// NewDetector creates a new Detector.
func NewDetector(embedder Embedder, index *vector.LocalIndex, nodes store.NodeStore) *Detector {
	return NewDetectorWithWeights(embedder, index, nodes, DefaultWeights)
}

// NewDetectorWithWeights creates a detector with custom weights.
func NewDetectorWithWeights(embedder Embedder, index *vector.LocalIndex, nodes store.NodeStore, weights Weights) *Detector {
	return &Detector{
		embedder: embedder,
		index:    index,
		nodes:    nodes,
		weights:  weights,
		now:      time.Now,
	}
}

// Detect finds duplicate and related notes for the given content. Embedding
// or index failures degrade to an empty response.
func (d *Detector) Detect(ctx context.Context, req *DetectRequest) (*DetectResponse, error) {
	start := time.Now()
	response := &DetectResponse{}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryEmb, err := d.embedder.Embed(ctx, ai.PlainText(req.Content))
	if err != nil {
		slog.Warn("failed to generate embedding for duplicate detection", "error", err)
		response.LatencyMs = time.Since(start).Milliseconds()
		return response, nil
	}

	// Get more candidates for filtering
	candidates, err := d.index.Search(queryEmb, topK*2+1)
	if err != nil {
		slog.Warn("vector search failed for duplicate detection", "error", err)
		response.LatencyMs = time.Since(start).Milliseconds()
		return response, nil
	}

	now := d.now()
	var similarities []SimilarNode
	for _, candidate := range candidates {
		if candidate.NodeID == req.ExcludeID {
			continue
		}
		node, err := d.nodes.GetNode(ctx, candidate.NodeID)
		if err != nil {
			continue
		}

		breakdown := &Breakdown{
			Vector:        candidate.Similarity,
			MarkerOverlap: MarkerOverlap(req.EmotionalMarkers, node.EmotionalMarkers),
			TimeProx:      TimeProximity(now, node.CreatedAt),
		}
		score := d.weights.forMarkers(req.EmotionalMarkers, node.EmotionalMarkers).Score(*breakdown)
		if score < RelatedThreshold {
			continue
		}

		level := LevelRelated
		if score >= DuplicateThreshold {
			level = LevelDuplicate
		}
		similarities = append(similarities, SimilarNode{
			ID:            node.ID,
			Title:         ExtractTitle(node.Content),
			Snippet:       Truncate(node.Content, 100),
			Similarity:    score,
			SharedMarkers: FindSharedMarkers(req.EmotionalMarkers, node.EmotionalMarkers),
			Level:         level,
			Breakdown:     breakdown,
		})
	}

	sort.SliceStable(similarities, func(i, j int) bool {
		return similarities[i].Similarity > similarities[j].Similarity
	})

	for _, sim := range similarities {
		if sim.Level == LevelDuplicate {
			response.Duplicates = append(response.Duplicates, sim)
			response.HasDuplicate = true
		} else {
			response.Related = append(response.Related, sim)
			response.HasRelated = true
		}
	}

	// Limit results
	if len(response.Duplicates) > topK {
		response.Duplicates = response.Duplicates[:topK]
	}
	if len(response.Related) > topK {
		response.Related = response.Related[:topK]
	}

	response.LatencyMs = time.Since(start).Milliseconds()
	return response, nil
}
