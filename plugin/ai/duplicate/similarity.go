package duplicate

import (
	"math"
	"strings"
	"time"

	"github.com/hrygo/synapse/plugin/ai"
)

// TimeDecayDays is the e-folding time of TimeProximity.
const TimeDecayDays = 7

// titleMaxRunes bounds the length of ExtractTitle.
const titleMaxRunes = 50

func foldMarker(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

// markerSet folds markers to lower case and drops blank ones.
func markerSet(markers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		if key := foldMarker(m); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// MarkerOverlap is the Jaccard index of two emotional marker sets, compared
// case-insensitively. Two empty sets overlap by 0.
func MarkerOverlap(a, b []string) float64 {
	setA, setB := markerSet(a), markerSet(b)
	union, shared := len(setA), 0
	for m := range setB {
		if _, ok := setA[m]; ok {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// TimeProximity is 1 for notes written at the same instant and shrinks by a
// factor of e every TimeDecayDays apart, in either direction.
func TimeProximity(a, b time.Time) float64 {
	days := math.Abs(a.Sub(b).Hours()) / 24
	return math.Exp(-days / TimeDecayDays)
}

// FindSharedMarkers returns the markers of candidate that also appear in
// markers, spelled and ordered as in candidate, each at most once.
func FindSharedMarkers(markers, candidate []string) []string {
	wanted := markerSet(markers)
	var shared []string
	for _, m := range candidate {
		key := foldMarker(m)
		if _, ok := wanted[key]; ok {
			shared = append(shared, m)
			delete(wanted, key)
		}
	}
	return shared
}

// Score combines the parts of b into one similarity.
func (w Weights) Score(b Breakdown) float64 {
	return w.Vector*b.Vector + w.MarkerOverlap*b.MarkerOverlap + w.TimeProx*b.TimeProx
}

// forMarkers returns the weights to compare two notes with. When neither
// carries a marker there is nothing to overlap, and the marker weight is
// moved onto the vector.
func (w Weights) forMarkers(a, b []string) Weights {
	if len(markerSet(a)) == 0 && len(markerSet(b)) == 0 {
		w.Vector += w.MarkerOverlap
		w.MarkerOverlap = 0
	}
	return w
}

// Truncate shortens content to maxLen runes, marking the cut with "...".
func Truncate(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}

// ExtractTitle returns the plain text of the first non-blank line of a note.
func ExtractTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if title := ai.PlainText(line); title != "" {
			return Truncate(title, titleMaxRunes)
		}
	}
	return ""
}
