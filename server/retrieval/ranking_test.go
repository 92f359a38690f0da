package retrieval

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/synapse/store"
)

func TestRecencyBoost(t *testing.T) {
	now := baseTime
	day := 24 * time.Hour

	assert.Equal(t, 1.0, recencyBoost(now, now))
	assert.Equal(t, 1.0, recencyBoost(now.Add(day), now), "future timestamps count as now")
	assert.InDelta(t, 0.5, recencyBoost(now.Add(-recencyWindow/2), now), 1e-9)
	assert.Equal(t, 0.0, recencyBoost(now.Add(-365*day), now))
	assert.Equal(t, 0.0, recencyBoost(now.Add(-1000*day), now))
}

func TestRelevance(t *testing.T) {
	w := DefaultRankingWeights()

	tests := []struct {
		name      string
		raw       float64
		recency   float64
		emotional float64
		want      float64
	}{
		{"raw only", 0.5, 0, 0, 0.5},
		{"recent", 0.5, 1, 0, 0.6},
		{"emotional", 0.5, 0, 1, 0.55},
		{"capped", 0.98, 1, 1, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, w.relevance(tt.raw, tt.recency, tt.emotional), 1e-9)
		})
	}
}

func TestEmotionalBoost(t *testing.T) {
	assert.Equal(t, 1.0, emotionalBoost(&store.Node{EmotionalMarkers: []string{"calm"}}))
	assert.Equal(t, 0.0, emotionalBoost(&store.Node{}))
}

func TestClampSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, clampSimilarity(-0.3))
	assert.Equal(t, 0.0, clampSimilarity(math.NaN()))
	assert.Equal(t, 1.0, clampSimilarity(1.0000001))
	assert.Equal(t, 0.42, clampSimilarity(0.42))
}

func TestSortResults(t *testing.T) {
	results := []SearchResult{
		{NodeID: "c", RelevanceScore: 0.5, RawSimilarity: 0.4},
		{NodeID: "b", RelevanceScore: 0.9, RawSimilarity: 0.8},
		{NodeID: "a", RelevanceScore: 0.5, RawSimilarity: 0.4},
		{NodeID: "d", RelevanceScore: 0.5, RawSimilarity: 0.45},
	}
	sortResults(results)
	assert.Equal(t, []string{"b", "d", "a", "c"}, resultIDs(results))
}
