package mock

import "github.com/kestrel-labs/kb/ai"

// MockProvider aggregates mock AI services for testing.
type MockProvider struct {
	embedder *MockEmbedder
	tagger   *MockTagger

	// TaggingDisabled makes TagSuggester return nil, simulating a provider
	// with no tag model configured.
	TaggingDisabled bool
}

// NewMockProvider creates a provider backed by mock services.
//
// Returns ai.Provider since it's the primary entry point; use
// GetMockEmbedder()/GetMockTagger() for assertions on the concrete types.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		tagger:   NewMockTagger(),
	}
}

var _ ai.Provider = (*MockProvider)(nil)

// Embedder returns the mock embedding service.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// TagSuggester returns the mock tag service, or nil when TaggingDisabled.
func (p *MockProvider) TagSuggester() ai.TagSuggester {
	if p.TaggingDisabled {
		return nil
	}
	return p.tagger
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the concrete mock embedder for assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockTagger returns the concrete mock tagger for assertions.
func (p *MockProvider) GetMockTagger() *MockTagger {
	return p.tagger
}
