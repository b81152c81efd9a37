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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kestrel-labs/kb/core"
)

// AddChunks inserts all chunks in one batch round trip. Embeddings are
// stored as pgvector columns so cosine search runs inside the database.
func (r *Repository) AddChunks(ctx context.Context, chunks []*core.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}
		if err := core.ValidateChunk(chunk); err != nil {
			return fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		headingPath := chunk.HeadingPath
		if headingPath == nil {
			headingPath = []string{}
		}
		batch.Queue(`
			INSERT INTO document_chunks (id, document_id, chunk_index, content,
				heading_path, token_count, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content,
			headingPath, chunk.TokenCount, pgvector.NewVector(chunk.Embedding),
			chunk.Metadata)
	}

	results := r.backend.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	r.logger.Debug("chunks stored",
		slog.String("document_id", chunks[0].DocumentID.String()),
		slog.Int("count", len(chunks)))
	return nil
}

// GetChunks returns a document's chunks in index order. Embeddings are
// included.
func (r *Repository) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*core.DocumentChunk, error) {
	rows, err := r.backend.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, heading_path,
			token_count, embedding, metadata
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("getting chunks for document %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []*core.DocumentChunk
	for rows.Next() {
		var chunk core.DocumentChunk
		var embedding pgvector.Vector
		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index,
			&chunk.Content, &chunk.HeadingPath, &chunk.TokenCount,
			&embedding, &chunk.Metadata)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting chunks for document %s: %w", documentID, err)
	}
	return chunks, nil
}
