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


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - ContentType must be PDF or Markdown
//   - Status must be a known value
//   - A ready document must have at least one chunk
//
// NOT validated (populated by the pipeline):
//   - RawText, ChunkCount, TokenCount before the document is ready
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(doc.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDocument)
	}

	if !doc.ContentType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedContentType, doc.ContentType)
	}

	if !doc.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, doc.Status)
	}

	if doc.Status == StatusReady && doc.ChunkCount == 0 {
		return fmt.Errorf("%w: ready document has no chunks", ErrInvalidDocument)
	}

	return nil
}

// ValidateChunk validates a single DocumentChunk.
func ValidateChunk(chunk *DocumentChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, chunk.Index)
	}

	return nil
}

// ValidateChunkSequence checks that chunks form a contiguous 0-based index
// sequence in source order and share one embedding dimensionality.
func ValidateChunkSequence(chunks []*DocumentChunk) error {
	dim := -1
	for i, chunk := range chunks {
		if err := ValidateChunk(chunk); err != nil {
			return err
		}
		if chunk.Index != i {
			return fmt.Errorf("%w: index %d at position %d", ErrChunkIndexGap, chunk.Index, i)
		}
		if len(chunk.Embedding) > 0 {
			if dim == -1 {
				dim = len(chunk.Embedding)
			} else if len(chunk.Embedding) != dim {
				return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(chunk.Embedding), dim)
			}
		}
	}
	return nil
}
