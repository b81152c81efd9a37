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


package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTextContent indicates that parsing produced no usable text.
	// The message is stored verbatim on the failed document.
	ErrNoTextContent = errors.New("No text content found")

	// ErrCancelled indicates that ingestion was cancelled before completion.
	ErrCancelled = errors.New("ingestion cancelled")

	// ErrServiceClosed indicates the ingestion service is shutting down and
	// no longer accepts work.
	ErrServiceClosed = errors.New("ingestion service is closed")

	// ErrAlreadyIngesting indicates an ingestion is already running for the
	// document.
	ErrAlreadyIngesting = errors.New("document is already being ingested")
)

// Stage identifies the pipeline stage an error originated from.
type Stage string

const (
	StageParse Stage = "parse"
	StageChunk Stage = "chunk"
	StageEmbed Stage = "embed"
	StageTag   Stage = "tag"
	StageStore Stage = "store"
)

// Error is an ingestion failure annotated with the stage it occurred in.
// The stage-qualified message is what gets persisted on the failed
// document, so operators can tell a parse failure from an embedding outage
// without reading logs.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with its originating stage.
func NewError(stage Stage, err error) *Error {
	return &Error{Stage: stage, Err: err}
}
