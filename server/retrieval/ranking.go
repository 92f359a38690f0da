package retrieval

import (
	"math"
	"sort"
	"time"

	"github.com/hrygo/synapse/store"
)

// recencyWindow is the age at which the recency boost reaches zero.
const recencyWindow = 365 * 24 * time.Hour

// RankingWeights are the boost weights of the relevance score. They are
// product tuning values; DefaultRankingWeights preserves the shipped ones.
type RankingWeights struct {
	Recency   float64
	Emotional float64
}

// DefaultRankingWeights returns the default weights.
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{Recency: 0.1, Emotional: 0.05}
}

// recencyBoost decays linearly from 1 for a node created now to 0 for a node
// a year old or older. Future timestamps count as now.
func recencyBoost(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age <= 0 {
		return 1
	}
	if age >= recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(recencyWindow)
}

func emotionalBoost(node *store.Node) float64 {
	if node.HasEmotionalMarker() {
		return 1
	}
	return 0
}

// relevance combines the raw similarity with the boosts, capped at 1.
func (w RankingWeights) relevance(raw, recency, emotional float64) float64 {
	return math.Min(1, raw+w.Recency*recency+w.Emotional*emotional)
}

// clampSimilarity maps a cosine similarity into [0, 1].
func clampSimilarity(sim float64) float64 {
	if math.IsNaN(sim) || sim < 0 {
		return 0
	}
	return math.Min(1, sim)
}

// sortResults orders results by relevance, then raw similarity, then node ID.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.RawSimilarity != b.RawSimilarity {
			return a.RawSimilarity > b.RawSimilarity
		}
		return a.NodeID < b.NodeID
	})
}
