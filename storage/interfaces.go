package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/kestrel-labs/kb/core"
)

// DocumentUpdate carries a partial update for a document. Nil fields are
// left unchanged (coalesce semantics), so a status-only update never
// clobbers unrelated fields such as chunk_count. Every update is applied as
// a single atomic read-modify-write keyed by document id.
type DocumentUpdate struct {
	Status     *core.Status
	Error      *string
	ChunkCount *int
	TokenCount *int
	RawText    *string
	Tags       *[]string
}

// SearchOptions controls a ranked chunk search.
type SearchOptions struct {
	// TopK is the maximum number of results. Default: 5
	TopK int

	// Tags restricts candidate documents to those whose tag set intersects
	// this list. Empty means no tag filter.
	Tags []string

	// Threshold is the minimum cosine similarity for a result. Default: 0.7
	Threshold float64
}

// Normalize fills in defaults for unset options.
func (o SearchOptions) Normalize() SearchOptions {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.7
	}
	return o
}

// DocumentRepository persists documents and their chunks and serves the
// filter-then-rank similarity search. Implementations must be thread-safe
// and support concurrent access.
type DocumentRepository interface {
	// CreateDocument inserts a new document. A zero ID is replaced with a
	// generated one; timestamps are populated. Returns the stored document.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by id.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id uuid.UUID) (*core.Document, error)

	// ListDocuments returns all documents ordered by creation time, newest
	// first. RawText is not populated.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// UpdateDocument applies a partial update atomically and returns the
	// updated document. Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, id uuid.UUID, update DocumentUpdate) (*core.Document, error)

	// DeleteDocument removes a document and, by cascade, its chunks.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// AddChunks inserts all chunks of a document in one bulk operation.
	// Chunk IDs are generated when zero.
	AddChunks(ctx context.Context, chunks []*core.DocumentChunk) error

	// GetChunks returns a document's chunks ordered by chunk index.
	GetChunks(ctx context.Context, documentID uuid.UUID) ([]*core.DocumentChunk, error)

	// SearchChunks ranks chunks of ready documents by cosine similarity to
	// the query embedding. When opts.Tags is non-empty, candidate documents
	// are first restricted to those with intersecting tags; ranking then
	// runs only within that set. Results below opts.Threshold are excluded;
	// the rest are ordered by similarity descending and truncated to
	// opts.TopK.
	SearchChunks(ctx context.Context, embedding []float32, opts SearchOptions) ([]*core.SearchResult, error)

	// Close releases the underlying storage resources.
	Close() error
}
