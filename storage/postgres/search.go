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


package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/storage"
)

// SearchChunks runs the filter-then-rank query: candidate chunks are
// restricted to ready documents (optionally to those with overlapping tags)
// before cosine ranking, so tag filters narrow the candidate set rather
// than post-filtering an already ranked list.
func (r *Repository) SearchChunks(ctx context.Context, embedding []float32, opts storage.SearchOptions) ([]*core.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", storage.ErrInvalidQuery)
	}
	opts = opts.Normalize()

	query, args := buildSearchQuery(pgvector.NewVector(embedding), opts)

	rows, err := r.backend.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []*core.SearchResult
	for rows.Next() {
		var res core.SearchResult
		err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.DocumentName,
			&res.DocumentTags, &res.Content, &res.HeadingPath,
			&res.TokenCount, &res.Similarity)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	r.logger.Debug("search completed",
		slog.Int("results", len(results)),
		slog.Float64("threshold", opts.Threshold),
		slog.Int("top_k", opts.TopK))
	return results, nil
}

// buildSearchQuery assembles the CTE search statement and its positional
// arguments. Cosine similarity is 1 - cosine distance, computed with the
// pgvector <=> operator.
func buildSearchQuery(embedding pgvector.Vector, opts storage.SearchOptions) (string, []any) {
	args := []any{embedding}
	argPos := 2

	var candidateFilter strings.Builder
	candidateFilter.WriteString("d.status = 'ready'")
	if len(opts.Tags) > 0 {
		fmt.Fprintf(&candidateFilter, " AND d.tags && $%d", argPos)
		args = append(args, opts.Tags)
		argPos++
	}

	query := fmt.Sprintf(`
		WITH scored_chunks AS (
			SELECT
				c.id AS chunk_id,
				c.document_id,
				d.name AS document_name,
				d.tags AS document_tags,
				c.content,
				c.heading_path,
				c.token_count,
				1 - (c.embedding <=> $1) AS similarity
			FROM document_chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE %s
		)
		SELECT chunk_id, document_id, document_name, document_tags,
			content, heading_path, token_count, similarity
		FROM scored_chunks
		WHERE similarity >= $%d
		ORDER BY similarity DESC
		LIMIT $%d`, candidateFilter.String(), argPos, argPos+1)

	args = append(args, opts.Threshold, opts.TopK)
	return query, args
}
