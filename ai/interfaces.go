package ai

import "context"

// ProgressFunc is invoked after each successfully embedded batch with the
// number of items just processed and the total item count. Callbacks from
// concurrently completing batches may arrive out of order even though
// results are always returned in input order.
type ProgressFunc func(processed, total int)

// Embedder converts text into dense vectors for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates an embedding vector for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embedding vectors for multiple texts.
	// The returned slice contains embeddings in the same order as the input
	// texts regardless of how the call is batched internally. onProgress may
	// be nil. On failure no partial results are returned.
	EmbedTexts(ctx context.Context, texts []string, onProgress ProgressFunc) ([][]float32, error)
}

// TagSuggestion is the structured output of a tag-derivation call.
type TagSuggestion struct {
	// Tags are the suggested keywords, as returned by the model before
	// cleaning and merging.
	Tags []string

	// Rationale is the model's short supporting explanation.
	Rationale string
}

// TagSuggester derives descriptive tags from document content.
// Implementations must be thread-safe for concurrent use.
type TagSuggester interface {
	// SuggestTags asks for 5-10 descriptive tags for the document excerpt
	// and its heading outline. The caller is responsible for truncating the
	// excerpt and for cleaning and merging the returned tags.
	SuggestTags(ctx context.Context, excerpt string, headingPaths []string) (*TagSuggestion, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// TagSuggester returns the tag derivation service, or nil when no tag
	// model is configured. Callers must treat a nil suggester as
	// "tag derivation disabled".
	TagSuggester() TagSuggester

	// Close releases resources held by the provider and its services.
	Close() error
}
