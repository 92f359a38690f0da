package retrieval

import (
	"strings"
	"unicode/utf8"
)

// Highlight markers wrapped around the matched text in a snippet.
const (
	HighlightOpen  = "**"
	HighlightClose = "**"
)

// findFirstMatch returns the first case-insensitive occurrence of the literal
// query in content, or nil. Offsets are rune positions in content.
func findFirstMatch(content, query string) *Highlight {
	query = strings.TrimSpace(query)
	if query == "" || content == "" {
		return nil
	}

	lowerQuery := strings.ToLower(query)
	queryLen := utf8.RuneCountInString(query)
	contentRunes := []rune(content)

	// Compare rune windows of the original content so offsets never drift
	// when lower-casing changes byte lengths.
	limit := len(contentRunes) - queryLen
	for i := 0; i <= limit; i++ {
		window := string(contentRunes[i : i+queryLen])
		if strings.ToLower(window) == lowerQuery {
			return &Highlight{Start: i, End: i + queryLen, MatchedText: window}
		}
	}
	return nil
}

// highlightSnippet marks h inside content. A nil h returns content unchanged.
func highlightSnippet(content string, h *Highlight) string {
	if h == nil {
		return content
	}
	runes := []rune(content)
	var b strings.Builder
	b.Grow(len(content) + len(HighlightOpen) + len(HighlightClose))
	b.WriteString(string(runes[:h.Start]))
	b.WriteString(HighlightOpen)
	b.WriteString(string(runes[h.Start:h.End]))
	b.WriteString(HighlightClose)
	b.WriteString(string(runes[h.End:]))
	return b.String()
}
