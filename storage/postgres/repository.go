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
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/storage"
)

const documentColumns = `id, name, filename, content_type, tags, status, error,
	chunk_count, token_count, raw_text, metadata, created_at, updated_at`

// Repository implements storage.DocumentRepository on PostgreSQL.
type Repository struct {
	backend *Backend
	logger  *slog.Logger
}

// NewDocumentRepository creates a document repository on the given backend.
func NewDocumentRepository(backend *Backend) storage.DocumentRepository {
	return &Repository{
		backend: backend,
		logger:  backend.logger.With(slog.String("component", "repository")),
	}
}

func (r *Repository) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
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

	row := r.backend.pool.QueryRow(ctx, `
		INSERT INTO documents (id, name, filename, content_type, tags, status, error,
			chunk_count, token_count, raw_text, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+documentColumns,
		doc.ID, doc.Name, doc.Filename, doc.ContentType, doc.Tags, doc.Status,
		doc.Error, doc.ChunkCount, doc.TokenCount, doc.RawText, doc.Metadata)

	stored, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("creating document %s: %w", doc.ID, storage.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("creating document %s: %w", doc.ID, err)
	}

	r.logger.Debug("document created",
		slog.String("document_id", stored.ID.String()),
		slog.String("name", stored.Name))
	return stored, nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*core.Document, error) {
	row := r.backend.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

func (r *Repository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	rows, err := r.backend.pool.Query(ctx, `
		SELECT id, name, filename, content_type, tags, status, error,
			chunk_count, token_count, '' AS raw_text, metadata, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*core.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// UpdateDocument applies the partial update atomically. COALESCE against
// nil parameters keeps unset fields at their stored value, so concurrent
// partial updates never clobber each other's fields. Status changes lock
// the row first and are checked against the lifecycle before the write.
func (r *Repository) UpdateDocument(ctx context.Context, id uuid.UUID, update storage.DocumentUpdate) (*core.Document, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidStatus, *update.Status)
	}

	var doc *core.Document
	err := pgx.BeginFunc(ctx, r.backend.pool, func(tx pgx.Tx) error {
		if update.Status != nil {
			var current core.Status
			err := tx.QueryRow(ctx,
				`SELECT status FROM documents WHERE id = $1 FOR UPDATE`, id).Scan(&current)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
				}
				return fmt.Errorf("locking document %s: %w", id, err)
			}
			if current != *update.Status && !current.CanTransitionTo(*update.Status) {
				return fmt.Errorf("%s -> %s: %w", current, *update.Status, core.ErrInvalidTransition)
			}
		}

		row := tx.QueryRow(ctx, `
			UPDATE documents SET
				status = COALESCE($2, status),
				error = COALESCE($3, error),
				chunk_count = COALESCE($4, chunk_count),
				token_count = COALESCE($5, token_count),
				raw_text = COALESCE($6, raw_text),
				tags = COALESCE($7, tags),
				updated_at = now()
			WHERE id = $1
			RETURNING `+documentColumns,
			id, update.Status, update.Error, update.ChunkCount,
			update.TokenCount, update.RawText, update.Tags)

		var scanErr error
		doc, scanErr = scanDocument(row)
		if scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
			}
			return fmt.Errorf("updating document %s: %w", id, scanErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("document updated",
		slog.String("document_id", id.String()),
		slog.String("status", string(doc.Status)))
	return doc, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.backend.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
	}
	r.logger.Debug("document deleted", slog.String("document_id", id.String()))
	return nil
}

func (r *Repository) Close() error {
	return r.backend.Close()
}

func scanDocument(row pgx.Row) (*core.Document, error) {
	var doc core.Document
	err := row.Scan(&doc.ID, &doc.Name, &doc.Filename, &doc.ContentType,
		&doc.Tags, &doc.Status, &doc.Error, &doc.ChunkCount, &doc.TokenCount,
		&doc.RawText, &doc.Metadata, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
