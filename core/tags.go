package core

import (
	"strings"
	"unicode/utf8"
)

// maxTagLength is the longest accepted tag, in characters.
const maxTagLength = 50

// CleanTags normalizes a tag list: each tag is trimmed and lower-cased,
// empty and over-length tags are dropped, and duplicates are removed by
// case-insensitive key. Input order of first occurrences is preserved.
// Cleaning is idempotent.
func CleanTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || utf8.RuneCountInString(tag) > maxTagLength {
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		cleaned = append(cleaned, tag)
	}
	return cleaned
}

// MergeTags combines caller-supplied tags with derived tags, cleaning both.
// Existing tags keep their position; derived tags are appended.
func MergeTags(existing, derived []string) []string {
	merged := make([]string, 0, len(existing)+len(derived))
	merged = append(merged, existing...)
	merged = append(merged, derived...)
	return CleanTags(merged)
}
