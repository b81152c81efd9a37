// Copyright 2025 Kestrel Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storagetest provides an in-memory DocumentRepository for tests.
// It mirrors the semantics of the PostgreSQL implementation, including
// coalesce updates and filter-then-rank cosine search, without needing a
// database.
package storagetest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/storage"
)

// Repository is an in-memory storage.DocumentRepository. Safe for
// concurrent use.
type Repository struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*core.Document
	chunks    map[uuid.UUID][]*core.DocumentChunk
	closed    bool

	// FailAddChunks, when set, is returned from AddChunks. Lets tests
	// exercise the storage-failure path of the pipeline.
	FailAddChunks error
}

var _ storage.DocumentRepository = (*Repository)(nil)

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		documents: make(map[uuid.UUID]*core.Document),
		chunks:    make(map[uuid.UUID][]*core.DocumentChunk),
	}
}

func (r *Repository) CreateDocument(_ context.Context, doc *core.Document) (*core.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = core.StatusPending
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if _, exists := r.documents[doc.ID]; exists {
		return nil, fmt.Errorf("creating document %s: %w", doc.ID, storage.ErrDuplicateKey)
	}

	now := time.Now().UTC()
	stored := cloneDocument(doc)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.documents[doc.ID] = stored
	return cloneDocument(stored), nil
}

func (r *Repository) GetDocument(_ context.Context, id uuid.UUID) (*core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	doc, ok := r.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
	}
	return cloneDocument(doc), nil
}

func (r *Repository) ListDocuments(_ context.Context) ([]*core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	docs := make([]*core.Document, 0, len(r.documents))
	for _, doc := range r.documents {
		c := cloneDocument(doc)
		c.RawText = ""
		docs = append(docs, c)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (r *Repository) UpdateDocument(_ context.Context, id uuid.UUID, update storage.DocumentUpdate) (*core.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	doc, ok := r.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
	}

	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidStatus, *update.Status)
		}
		if *update.Status != doc.Status && !doc.Status.CanTransitionTo(*update.Status) {
			return nil, fmt.Errorf("%s -> %s: %w", doc.Status, *update.Status, core.ErrInvalidTransition)
		}
		doc.Status = *update.Status
	}
	if update.Error != nil {
		doc.Error = *update.Error
	}
	if update.ChunkCount != nil {
		doc.ChunkCount = *update.ChunkCount
	}
	if update.TokenCount != nil {
		doc.TokenCount = *update.TokenCount
	}
	if update.RawText != nil {
		doc.RawText = *update.RawText
	}
	if update.Tags != nil {
		doc.Tags = append([]string(nil), (*update.Tags)...)
	}
	doc.UpdatedAt = time.Now().UTC()
	return cloneDocument(doc), nil
}

func (r *Repository) DeleteDocument(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return storage.ErrStorageClosed
	}

	if _, ok := r.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
	}
	delete(r.documents, id)
	delete(r.chunks, id)
	return nil
}

func (r *Repository) AddChunks(_ context.Context, chunks []*core.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return storage.ErrStorageClosed
	}
	if r.FailAddChunks != nil {
		return r.FailAddChunks
	}

	for _, chunk := range chunks {
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}
		if err := core.ValidateChunk(chunk); err != nil {
			return fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		r.chunks[chunk.DocumentID] = append(r.chunks[chunk.DocumentID], cloneChunk(chunk))
	}
	return nil
}

func (r *Repository) GetChunks(_ context.Context, documentID uuid.UUID) ([]*core.DocumentChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	stored := r.chunks[documentID]
	out := make([]*core.DocumentChunk, 0, len(stored))
	for _, chunk := range stored {
		out = append(out, cloneChunk(chunk))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (r *Repository) SearchChunks(_ context.Context, embedding []float32, opts storage.SearchOptions) ([]*core.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", storage.ErrInvalidQuery)
	}
	opts = opts.Normalize()

	var results []*core.SearchResult
	for docID, doc := range r.documents {
		if doc.Status != core.StatusReady {
			continue
		}
		if len(opts.Tags) > 0 && !rawTagsOverlap(doc.Tags, opts.Tags) {
			continue
		}
		for _, chunk := range r.chunks[docID] {
			sim := cosineSimilarity(embedding, chunk.Embedding)
			if sim < opts.Threshold {
				continue
			}
			results = append(results, &core.SearchResult{
				ChunkID:      chunk.ID,
				DocumentID:   docID,
				DocumentName: doc.Name,
				DocumentTags: append([]string(nil), doc.Tags...),
				Content:      chunk.Content,
				HeadingPath:  append([]string(nil), chunk.HeadingPath...),
				Similarity:   sim,
				TokenCount:   chunk.TokenCount,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// DocumentCount returns the number of stored documents.
func (r *Repository) DocumentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}

// rawTagsOverlap matches the Postgres && operator: exact string overlap,
// case-sensitive. Normalization is the writer's job (CleanTags), not the
// store's, and the double must not be more forgiving than the real backend.
func rawTagsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, tag := range a {
		set[tag] = true
	}
	for _, tag := range b {
		if set[tag] {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cloneDocument(doc *core.Document) *core.Document {
	c := *doc
	c.Tags = append([]string(nil), doc.Tags...)
	c.Metadata = doc.Metadata.Clone()
	return &c
}

func cloneChunk(chunk *core.DocumentChunk) *core.DocumentChunk {
	c := *chunk
	c.HeadingPath = append([]string(nil), chunk.HeadingPath...)
	c.Embedding = append([]float32(nil), chunk.Embedding...)
	c.Metadata = chunk.Metadata.Clone()
	return &c
}
