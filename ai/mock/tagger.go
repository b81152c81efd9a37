package mock

import (
	"context"
	"strings"

	"github.com/kestrel-labs/kb/ai"
)

// MockTagger is a test double for ai.TagSuggester.
// It allows custom behavior injection via function fields.
type MockTagger struct {
	// SuggestTagsFunc is called by SuggestTags if set.
	// If nil, uses default simple word extraction.
	SuggestTagsFunc func(ctx context.Context, excerpt string, headingPaths []string) (*ai.TagSuggestion, error)

	callCount int
}

// NewMockTagger creates a mock tag suggester with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockTagger() *MockTagger {
	return &MockTagger{}
}

// SuggestTags derives simple mock tags from the excerpt's leading words.
func (m *MockTagger) SuggestTags(ctx context.Context, excerpt string, headingPaths []string) (*ai.TagSuggestion, error) {
	m.callCount++

	if m.SuggestTagsFunc != nil {
		return m.SuggestTagsFunc(ctx, excerpt, headingPaths)
	}

	words := strings.Fields(strings.ToLower(excerpt))
	tags := make([]string, 0, 5)
	for _, word := range words {
		if len(tags) >= 5 {
			break
		}
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) < 4 {
			continue
		}
		tags = append(tags, word)
	}

	return &ai.TagSuggestion{
		Tags:      tags,
		Rationale: "mock tags from leading words",
	}, nil
}

// CallCount returns the number of times SuggestTags was called.
func (m *MockTagger) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom function.
func (m *MockTagger) Reset() {
	m.callCount = 0
	m.SuggestTagsFunc = nil
}
