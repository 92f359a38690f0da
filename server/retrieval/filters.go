package retrieval

import (
	"strings"

	"github.com/hrygo/synapse/store"
)

// applyFilters keeps the ranked results whose node satisfies every present
// filter. Order is preserved.
func applyFilters(results []SearchResult, lookup func(string) *store.Node, f MultiModalFilters) []SearchResult {
	tags := normalizeSet(f.EmotionalTags)
	types := normalizeSet(f.NodeTypes)
	if len(tags) == 0 && len(types) == 0 && f.TimeRange == nil {
		return results
	}

	kept := results[:0]
	for _, r := range results {
		node := lookup(r.NodeID)
		if node == nil {
			continue
		}
		if len(tags) > 0 && !hasAny(node.EmotionalMarkers, tags) {
			continue
		}
		if len(types) > 0 {
			if _, ok := types[strings.ToLower(node.NodeType)]; !ok {
				continue
			}
		}
		if !f.TimeRange.Contains(node.CreatedAt) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func normalizeSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func hasAny(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[strings.ToLower(strings.TrimSpace(v))]; ok {
			return true
		}
	}
	return false
}
