// Package retrieval merges local and remote vector search into ranked,
// highlighted and explained results.
package retrieval

import (
	"strings"
	"time"

	"github.com/hrygo/synapse/plugin/ai/router"
)

// SearchMode is the mode requested by the caller.
type SearchMode int

const (
	// SearchAuto lets the router choose between local and remote.
	SearchAuto SearchMode = iota
	// SearchLocalOnly never consults the router and never charges quota.
	SearchLocalOnly
	// SearchRemote requires the remote path; it fails when the router refuses it.
	SearchRemote
)

func (m SearchMode) String() string {
	switch m {
	case SearchLocalOnly:
		return "local_only"
	case SearchRemote:
		return "remote"
	default:
		return "auto"
	}
}

// ParseSearchMode parses a mode name. Unknown names map to SearchAuto.
func ParseSearchMode(s string) SearchMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "local_only", "local-only":
		return SearchLocalOnly
	case "remote":
		return SearchRemote
	default:
		return SearchAuto
	}
}

// Highlight is the position of the query inside the node content, in runes.
type Highlight struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	MatchedText string `json:"matched_text"`
}

// SearchResult is one ranked hit. It is derived and never persisted.
type SearchResult struct {
	NodeID             string      `json:"node_id"`
	RawSimilarity      float64     `json:"raw_similarity"`
	RelevanceScore     float64     `json:"relevance_score"`
	HighlightedSnippet string      `json:"highlighted_snippet"`
	Highlight          *Highlight  `json:"highlight,omitempty"`
	Explanation        string      `json:"explanation"`
	RelatedNodeIDs     []string    `json:"related_node_ids"`
	Mode               router.Mode `json:"mode"`
}

// SearchOutcome is the result of one search together with the path that
// produced it. Degraded paths are reported here rather than hidden.
type SearchOutcome struct {
	Results   []SearchResult
	Requested SearchMode
	// Attempted is the mode the router chose.
	Attempted router.Mode
	// Ran is the mode that produced Results. It differs from Attempted when
	// the remote call failed and local results were served instead.
	Ran       router.Mode
	Fallback  bool
	Reason    string
	// RemoteErr is the remote failure behind a fallback.
	RemoteErr error
	StartedAt time.Time
}

// HistoryEntry records one completed search.
type HistoryEntry struct {
	Query       string
	Timestamp   time.Time
	ResultCount int
	Mode        router.Mode
}

// Metrics are the running search counters.
type Metrics struct {
	TotalSearches       int64
	FailedSearches      int64
	EmbeddingsGenerated int64
	AverageResultCount  float64
	// SuccessRate is the percentage of searches that did not fail.
	SuccessRate float64
	ByMode      map[string]int64
}

// TimeRange bounds node creation time. Zero bounds are open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the range, bounds inclusive.
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// MultiModalFilters are the optional criteria of MultiModalSearch. Every
// present filter must hold for a result to be kept.
type MultiModalFilters struct {
	Text          string
	EmotionalTags []string
	TimeRange     *TimeRange
	NodeTypes     []string
}

func (f MultiModalFilters) describe() string {
	parts := make([]string, 0, 4)
	if f.Text != "" {
		parts = append(parts, f.Text)
	}
	if len(f.EmotionalTags) > 0 {
		parts = append(parts, "tags:"+strings.Join(f.EmotionalTags, ","))
	}
	if len(f.NodeTypes) > 0 {
		parts = append(parts, "types:"+strings.Join(f.NodeTypes, ","))
	}
	if f.TimeRange != nil {
		parts = append(parts, "time-range")
	}
	return strings.Join(parts, " ")
}
