// Package vector provides the in-memory vector index used for local semantic search.
package vector

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/plugin/ai"
)

// ErrNotIndexed is returned when a node has no vector in the index.
var ErrNotIndexed = errors.New("node is not indexed")

// IndexedVector is the embedding of one node.
type IndexedVector struct {
	NodeID    string
	Embedding ai.TextEmbedding
	IndexedAt time.Time

	seq uint64 // monotonic upsert counter; higher is more recent
}

// Match is an unranked similarity hit.
type Match struct {
	NodeID     string
	Similarity float64
}

// LocalIndex maps node IDs to embeddings and answers similarity queries by
// linear scan. Writers are serialized against readers, so a search never
// observes a half-written vector.
//
// All vectors share one model version. The index adopts the version of its
// first vector unless created with one.
type LocalIndex struct {
	mu      sync.RWMutex
	version string
	// shape is the first vector indexed since the last Reset. It fixes the
	// dimension every later vector must have.
	shape ai.TextEmbedding
	vectors map[string]*IndexedVector
	order   []string // first-indexed order, used by Cluster
	seq     uint64

	now func() time.Time
}

// NewLocalIndex creates an empty index. modelVersion may be empty.
func NewLocalIndex(modelVersion string) *LocalIndex {
	return &LocalIndex{
		version: modelVersion,
		vectors: make(map[string]*IndexedVector),
		now:     time.Now,
	}
}

// Version returns the model version of the indexed vectors.
func (x *LocalIndex) Version() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.version
}

// Upsert indexes or replaces the vector of a node. A replaced vector keeps the
// node's position in index order but becomes the most recently indexed.
func (x *LocalIndex) Upsert(nodeID string, emb ai.TextEmbedding) error {
	if nodeID == "" {
		return aierrors.InvalidArgument("node id is required")
	}
	if emb.IsZero() {
		return aierrors.InvalidArgument("embedding is empty")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.checkLocked(emb); err != nil {
		return err
	}
	if x.version == "" {
		x.version = emb.ModelVersion
	}

	x.seq++
	vec := make([]float32, len(emb.Vector))
	copy(vec, emb.Vector)
	iv := &IndexedVector{
		NodeID:    nodeID,
		Embedding: ai.TextEmbedding{Vector: vec, ModelVersion: emb.ModelVersion},
		IndexedAt: x.now(),
		seq:       x.seq,
	}
	if _, exists := x.vectors[nodeID]; !exists {
		x.order = append(x.order, nodeID)
	}
	x.vectors[nodeID] = iv
	if x.shape.IsZero() {
		x.shape = iv.Embedding
	}
	return nil
}

// Remove drops the vector of a node. Returns true if it was indexed.
func (x *LocalIndex) Remove(nodeID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.vectors[nodeID]; !ok {
		return false
	}
	delete(x.vectors, nodeID)
	for i, id := range x.order {
		if id == nodeID {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
	return true
}

// Search returns the limit vectors most similar to query, most similar first.
// Ties are broken by most recently indexed first.
func (x *LocalIndex) Search(query ai.TextEmbedding, limit int) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.checkLocked(query); err != nil {
		return nil, err
	}
	return x.scanLocked(query.Vector, "", limit), nil
}

// FindSimilar searches with the node's own vector and never returns the node itself.
func (x *LocalIndex) FindSimilar(nodeID string, limit int) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	iv, ok := x.vectors[nodeID]
	if !ok {
		return nil, errors.Wrapf(ErrNotIndexed, "node %s", nodeID)
	}
	return x.scanLocked(iv.Embedding.Vector, nodeID, limit), nil
}

// Cluster groups nodes whose similarity to a seed node is at least
// minSimilarity.
//
// The algorithm is greedy and order-dependent: it walks unassigned nodes in
// index order, makes each one a seed, and claims every still-unassigned node
// similar enough to that seed. A node joins the first cluster whose seed
// claims it even when a later seed would be closer, so the result is not a
// globally optimal clustering. Clusters of a single node are dropped.
// Members are listed in index order.
func (x *LocalIndex) Cluster(minSimilarity float64) [][]string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	assigned := make(map[string]bool, len(x.order))
	var clusters [][]string

	for i, seedID := range x.order {
		if assigned[seedID] {
			continue
		}
		assigned[seedID] = true
		seed := x.vectors[seedID].Embedding.Vector

		members := []string{seedID}
		for _, candidateID := range x.order[i+1:] {
			if assigned[candidateID] {
				continue
			}
			if CosineSimilarity(seed, x.vectors[candidateID].Embedding.Vector) >= minSimilarity {
				assigned[candidateID] = true
				members = append(members, candidateID)
			}
		}

		if len(members) > 1 {
			clusters = append(clusters, members)
		}
	}
	return clusters
}

// Len returns the number of indexed nodes.
func (x *LocalIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Get returns a copy of the indexed vector of a node.
func (x *LocalIndex) Get(nodeID string) (IndexedVector, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	iv, ok := x.vectors[nodeID]
	if !ok {
		return IndexedVector{}, false
	}
	return *iv, true
}

// IDs returns the indexed node IDs in index order.
func (x *LocalIndex) IDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// Contains reports whether the node is indexed.
func (x *LocalIndex) Contains(nodeID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.vectors[nodeID]
	return ok
}

// Reset removes every vector. The index is derived data and can be rebuilt
// from the node store at any time.
func (x *LocalIndex) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = make(map[string]*IndexedVector)
	x.order = nil
	x.shape = ai.TextEmbedding{}
}

// checkLocked fails fast on a vector that cannot be compared with the index.
// Must be called with lock held.
func (x *LocalIndex) checkLocked(emb ai.TextEmbedding) error {
	ref := x.shape
	if ref.IsZero() {
		if x.version == "" {
			return nil
		}
		// Nothing indexed yet: only the version is fixed.
		ref = ai.TextEmbedding{Vector: emb.Vector, ModelVersion: x.version}
	}
	return ref.CheckCompatible(emb)
}

// scanLocked scores every vector except exclude against query.
// Must be called with lock held.
func (x *LocalIndex) scanLocked(query []float32, exclude string, limit int) []Match {
	if limit <= 0 || len(x.vectors) == 0 {
		return []Match{}
	}

	type scored struct {
		match Match
		seq   uint64
	}
	candidates := make([]scored, 0, len(x.vectors))
	for id, iv := range x.vectors {
		if id == exclude {
			continue
		}
		candidates = append(candidates, scored{
			match: Match{NodeID: id, Similarity: CosineSimilarity(query, iv.Embedding.Vector)},
			seq:   iv.seq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].match.Similarity != candidates[j].match.Similarity {
			return candidates[i].match.Similarity > candidates[j].match.Similarity
		}
		return candidates[i].seq > candidates[j].seq
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = c.match
	}
	return matches
}
