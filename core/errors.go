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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a DocumentChunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidStatus indicates an unknown document status value.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrInvalidTransition indicates a status change that violates the
	// one-directional lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnsupportedContentType indicates a content type outside the
	// PDF/Markdown allow-list.
	ErrUnsupportedContentType = errors.New("unsupported file type")

	// ErrEmptyContent indicates empty or whitespace-only content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrChunkIndexGap indicates chunk indices are not contiguous from 0.
	ErrChunkIndexGap = errors.New("chunk indices must be contiguous from 0")

	// ErrDimensionMismatch indicates chunk embeddings of differing dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")
)
