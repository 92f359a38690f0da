package cache

import "strings"

// NormalizeKey trims the text, collapses runs of whitespace (including
// newlines) to a single space and lower-cases it. Texts that differ only in
// case or spacing share a cache entry.
func NormalizeKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
