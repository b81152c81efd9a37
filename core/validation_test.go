package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	return &Document{
		ID:          uuid.New(),
		Name:        "Design Doc",
		Filename:    "design.md",
		ContentType: ContentTypeMarkdown,
		Status:      StatusPending,
	}
}

func TestValidateDocument_Valid(t *testing.T) {
	assert.NoError(t, ValidateDocument(validDocument()))
}

func TestValidateDocument_Nil(t *testing.T) {
	err := ValidateDocument(nil)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestValidateDocument_EmptyName(t *testing.T) {
	doc := validDocument()
	doc.Name = "   "
	assert.ErrorIs(t, ValidateDocument(doc), ErrInvalidDocument)
}

func TestValidateDocument_UnsupportedContentType(t *testing.T) {
	doc := validDocument()
	doc.ContentType = "image/png"
	assert.ErrorIs(t, ValidateDocument(doc), ErrUnsupportedContentType)
}

func TestValidateDocument_ReadyRequiresChunks(t *testing.T) {
	doc := validDocument()
	doc.Status = StatusReady
	doc.ChunkCount = 0
	assert.ErrorIs(t, ValidateDocument(doc), ErrInvalidDocument)

	doc.ChunkCount = 3
	assert.NoError(t, ValidateDocument(doc))
}

func TestValidateChunkSequence_Contiguous(t *testing.T) {
	docID := uuid.New()
	chunks := []*DocumentChunk{
		{ID: uuid.New(), DocumentID: docID, Index: 0, Content: "a", Embedding: []float32{1, 2}},
		{ID: uuid.New(), DocumentID: docID, Index: 1, Content: "b", Embedding: []float32{3, 4}},
		{ID: uuid.New(), DocumentID: docID, Index: 2, Content: "c", Embedding: []float32{5, 6}},
	}
	require.NoError(t, ValidateChunkSequence(chunks))
}

func TestValidateChunkSequence_Gap(t *testing.T) {
	docID := uuid.New()
	chunks := []*DocumentChunk{
		{ID: uuid.New(), DocumentID: docID, Index: 0, Content: "a"},
		{ID: uuid.New(), DocumentID: docID, Index: 2, Content: "b"},
	}
	assert.ErrorIs(t, ValidateChunkSequence(chunks), ErrChunkIndexGap)
}

func TestValidateChunkSequence_DimensionMismatch(t *testing.T) {
	docID := uuid.New()
	chunks := []*DocumentChunk{
		{ID: uuid.New(), DocumentID: docID, Index: 0, Content: "a", Embedding: []float32{1, 2, 3}},
		{ID: uuid.New(), DocumentID: docID, Index: 1, Content: "b", Embedding: []float32{1, 2}},
	}
	assert.ErrorIs(t, ValidateChunkSequence(chunks), ErrDimensionMismatch)
}

func TestValidateChunk_EmptyContent(t *testing.T) {
	chunk := &DocumentChunk{ID: uuid.New(), Index: 0, Content: " \n\t"}
	assert.ErrorIs(t, ValidateChunk(chunk), ErrEmptyContent)
}

func TestMetadata_CloneRoundTrip(t *testing.T) {
	meta := Metadata{
		"source":  "upload",
		"pages":   float64(12),
		"nested":  map[string]any{"a": "b"},
		"numbers": []any{float64(1), float64(2)},
	}

	clone := meta.Clone()
	require.NotNil(t, clone)
	assert.True(t, meta.Equal(clone))

	// Mutating the clone must not affect the original.
	clone["source"] = "derived"
	assert.Equal(t, "upload", meta["source"])
}

func TestMetadata_NilClone(t *testing.T) {
	var meta Metadata
	assert.Nil(t, meta.Clone())
	assert.True(t, meta.Equal(nil))
}
