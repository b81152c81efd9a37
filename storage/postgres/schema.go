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
)

// embeddingDimensions is the vector column width. It must match the
// embedding model; re-embedding with a different model requires a migration.
const embeddingDimensions = 1536

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		chunk_count INTEGER NOT NULL DEFAULT 0,
		token_count INTEGER NOT NULL DEFAULT 0,
		raw_text TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		heading_path TEXT[] NOT NULL DEFAULT '{}',
		token_count INTEGER NOT NULL DEFAULT 0,
		embedding vector(%d),
		metadata JSONB NOT NULL DEFAULT '{}',
		UNIQUE (document_id, chunk_index)
	)`, embeddingDimensions),

	`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status)`,

	`CREATE INDEX IF NOT EXISTS idx_documents_tags ON documents USING gin (tags)`,

	`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON document_chunks (document_id)`,

	// ivfflat needs rows to build useful lists; creating it up front on an
	// empty table is still correct, just unoptimized until ANALYZE runs.
	`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
}

func (b *Backend) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration %d: %w", i, err)
		}
	}
	b.logger.Debug("schema migrations applied", "count", len(migrations))
	return nil
}
