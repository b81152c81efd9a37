package core

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a document.
// Transitions are one-directional: pending -> processing -> ready|failed.
type Status string

const (
	// StatusPending means the document is uploaded but not yet processed.
	StatusPending Status = "pending"
	// StatusProcessing means the ingestion pipeline is working on the document.
	StatusProcessing Status = "processing"
	// StatusReady means the document is chunked, embedded and searchable.
	StatusReady Status = "ready"
	// StatusFailed means ingestion failed; Error carries a short description.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next respects the
// lifecycle. Failed documents may re-enter processing for re-ingestion;
// ready is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusReady || next == StatusFailed
	case StatusFailed:
		return next == StatusProcessing
	}
	return false
}

// ContentType identifies the format of an uploaded document.
type ContentType string

const (
	// ContentTypePDF is a PDF document.
	ContentTypePDF ContentType = "application/pdf"
	// ContentTypeMarkdown is a Markdown document.
	ContentTypeMarkdown ContentType = "text/markdown"
)

// Valid reports whether c is a supported content type.
func (c ContentType) Valid() bool {
	return c == ContentTypePDF || c == ContentTypeMarkdown
}

// Document is a unit of uploaded content. RawText holds the full extracted
// text for downstream reuse and is not part of the public listing contract.
type Document struct {
	ID          uuid.UUID
	Name        string
	Filename    string
	ContentType ContentType
	Tags        []string
	Status      Status
	Error       string
	ChunkCount  int
	TokenCount  int
	RawText     string
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentChunk is one retrievable unit of a document. Chunk indices for a
// document are contiguous integers starting at 0, in source order.
type DocumentChunk struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Index       int
	Content     string
	HeadingPath []string
	TokenCount  int
	Embedding   []float32
	Metadata    Metadata
}

// SearchResult joins a chunk to its parent document for query responses.
// It is constructed per query and never persisted.
type SearchResult struct {
	ChunkID      uuid.UUID
	DocumentID   uuid.UUID
	DocumentName string
	DocumentTags []string
	Content      string
	HeadingPath  []string
	Similarity   float64
	TokenCount   int
}
