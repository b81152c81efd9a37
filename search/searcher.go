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


package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kestrel-labs/kb/ai"
	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/storage"
)

// Query is a semantic search request.
type Query struct {
	// Text is the natural-language query. Required.
	Text string

	// Tags restricts the search to documents with intersecting tags.
	Tags []string

	// TopK caps the number of results. Zero means the default.
	TopK int

	// Threshold is the minimum cosine similarity. Zero means the default.
	Threshold float64
}

// Searcher answers semantic queries: the query text is embedded once, then
// ranked against stored chunk embeddings in the repository.
type Searcher struct {
	embedder ai.Embedder
	repo     storage.DocumentRepository
	logger   *slog.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithLogger sets the logger for search operations.
func WithLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a searcher over the given embedder and repository.
func NewSearcher(embedder ai.Embedder, repo storage.DocumentRepository, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		embedder: embedder,
		repo:     repo,
		logger:   slog.Default().With(slog.String("component", "search")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the query and returns results ordered by similarity,
// highest first. Tag filtering happens before ranking, so a tag-filtered
// search returns a subset of what the unfiltered search would.
func (s *Searcher) Search(ctx context.Context, query Query) ([]*core.SearchResult, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryEmbedding, err)
	}

	results, err := s.repo.SearchChunks(ctx, embedding, storage.SearchOptions{
		TopK:      query.TopK,
		Tags:      core.CleanTags(query.Tags),
		Threshold: query.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	s.logger.Debug("search completed",
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))
	return results, nil
}
