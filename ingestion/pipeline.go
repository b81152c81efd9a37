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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-labs/kb/ai"
	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/storage"
)

const (
	// defaultMaxConcurrent bounds how many documents are ingested at once.
	// Together with the embedder's per-document batch concurrency this caps
	// total in-flight embedding calls.
	defaultMaxConcurrent = 2

	// Embedding progress is rescaled into this window of the overall
	// fraction; parsing and chunking sit below it, tagging and storage
	// above.
	embedProgressStart = 0.20
	embedProgressEnd   = 0.90

	// tagExcerptLimit bounds the document text sent to the tag model.
	tagExcerptLimit = 8000

	failureUpdateTimeout = 5 * time.Second
)

// Pipeline turns an uploaded file into searchable chunks: parse, chunk,
// embed, tag, store. The document row in the repository is the single
// source of truth for ingestion state; the pipeline only moves it through
// the pending -> processing -> ready/failed lifecycle.
type Pipeline struct {
	repo     storage.DocumentRepository
	provider ai.Provider
	chunker  *Chunker
	events   EventSink
	logger   *slog.Logger

	// sem bounds concurrent ingestions. A plain channel semaphore so a
	// waiting caller can still honor context cancellation.
	sem chan struct{}
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMaxConcurrent sets how many documents may be ingested concurrently.
func WithMaxConcurrent(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.sem = make(chan struct{}, n)
		}
	}
}

// WithEventSink registers a sink for lifecycle events.
func WithEventSink(sink EventSink) PipelineOption {
	return func(p *Pipeline) {
		if sink != nil {
			p.events = sink
		}
	}
}

// WithChunker replaces the default chunker.
func WithChunker(chunker *Chunker) PipelineOption {
	return func(p *Pipeline) {
		if chunker != nil {
			p.chunker = chunker
		}
	}
}

// WithPipelineLogger sets the logger for pipeline operations.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates an ingestion pipeline over the given repository and
// AI provider.
func NewPipeline(repo storage.DocumentRepository, provider ai.Provider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		repo:     repo,
		provider: provider,
		chunker:  NewChunker(),
		events:   nopSink{},
		logger:   slog.Default().With(slog.String("component", "ingestion")),
		sem:      make(chan struct{}, defaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestDocument runs the full pipeline for an already-created document.
// The document must exist in PENDING (or FAILED, for re-ingestion) state;
// on return it is READY or FAILED. A cancelled context marks the document
// FAILED on a best-effort basis so it is never stranded in PROCESSING.
func (p *Pipeline) IngestDocument(ctx context.Context, documentID uuid.UUID, data []byte) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	defer func() { <-p.sem }()

	logger := p.logger.With(slog.String("document_id", documentID.String()))
	start := time.Now()

	doc, err := p.repo.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}
	if doc.Status == core.StatusProcessing {
		return fmt.Errorf("document %s: %w", documentID, ErrAlreadyIngesting)
	}

	if _, err := p.setStatus(ctx, documentID, core.StatusProcessing); err != nil {
		return err
	}
	p.publish(Event{Type: EventStarted, DocumentID: documentID})
	logger.Info("ingestion started",
		slog.String("content_type", string(doc.ContentType)),
		slog.Int("bytes", len(data)))

	if err := p.run(ctx, doc, data, logger); err != nil {
		p.fail(ctx, documentID, err, logger)
		return err
	}

	p.publish(Event{Type: EventCompleted, DocumentID: documentID, Progress: 1.0})
	logger.Info("ingestion completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Pipeline) run(ctx context.Context, doc *core.Document, data []byte, logger *slog.Logger) error {
	// Parse.
	if err := ctx.Err(); err != nil {
		return NewError(StageParse, ErrCancelled)
	}
	text, err := ExtractText(doc.ContentType, data)
	if err != nil {
		return NewError(StageParse, err)
	}
	p.progress(doc.ID, 0.10, StageParse, 0, 0)

	// Chunk.
	if err := ctx.Err(); err != nil {
		return NewError(StageChunk, ErrCancelled)
	}
	chunks, err := p.chunker.Chunk(doc.ID, doc.ContentType, text)
	if err != nil {
		return NewError(StageChunk, err)
	}
	p.progress(doc.ID, embedProgressStart, StageChunk, 0, len(chunks))
	logger.Debug("document chunked", slog.Int("chunks", len(chunks)))

	// Embed. Per-batch progress is rescaled into the embedding window of
	// the overall fraction.
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	embeddings, err := p.provider.Embedder().EmbedTexts(ctx, texts, func(processed, total int) {
		if total == 0 {
			return
		}
		frac := embedProgressStart + (embedProgressEnd-embedProgressStart)*float64(processed)/float64(total)
		p.progress(doc.ID, frac, StageEmbed, processed, total)
	})
	if err != nil {
		if ctx.Err() != nil {
			return NewError(StageEmbed, ErrCancelled)
		}
		return NewError(StageEmbed, err)
	}
	for i, chunk := range chunks {
		chunk.Embedding = embeddings[i]
	}
	if err := core.ValidateChunkSequence(chunks); err != nil {
		return NewError(StageEmbed, err)
	}

	// Tag. Failures here never fail the document.
	tags := p.deriveTags(ctx, doc, text, chunks, logger)
	p.progress(doc.ID, 0.95, StageTag, len(chunks), len(chunks))

	// Store chunks, then flip the document READY in one coalesced update.
	if err := ctx.Err(); err != nil {
		return NewError(StageStore, ErrCancelled)
	}
	if err := p.repo.AddChunks(ctx, chunks); err != nil {
		return NewError(StageStore, err)
	}

	totalTokens := 0
	for _, chunk := range chunks {
		totalTokens += chunk.TokenCount
	}
	ready := core.StatusReady
	chunkCount := len(chunks)
	if _, err := p.repo.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{
		Status:     &ready,
		ChunkCount: &chunkCount,
		TokenCount: &totalTokens,
		RawText:    &text,
		Tags:       &tags,
	}); err != nil {
		return NewError(StageStore, err)
	}
	return nil
}

// deriveTags asks the tag model for suggestions and merges them with the
// uploader's tags. Any failure is logged and swallowed: tags are an
// enrichment, not a requirement.
func (p *Pipeline) deriveTags(ctx context.Context, doc *core.Document, text string, chunks []*core.DocumentChunk, logger *slog.Logger) []string {
	existing := core.CleanTags(doc.Tags)

	suggester := p.provider.TagSuggester()
	if suggester == nil {
		return existing
	}
	if ctx.Err() != nil {
		return existing
	}

	suggestion, err := suggester.SuggestTags(ctx, taggingExcerpt(text), UniqueHeadingPaths(chunks))
	if err != nil {
		logger.Warn("tag derivation failed", slog.String("error", err.Error()))
		return existing
	}

	merged := core.MergeTags(existing, suggestion.Tags)
	logger.Debug("tags derived",
		slog.Int("suggested", len(suggestion.Tags)),
		slog.Int("merged", len(merged)),
		slog.String("rationale", suggestion.Rationale))
	return merged
}

// fail transitions the document to FAILED with the stage-qualified message.
// Runs on a context detached from the caller so a cancelled ingestion can
// still record its failure instead of stranding the document in PROCESSING.
func (p *Pipeline) fail(ctx context.Context, documentID uuid.UUID, cause error, logger *slog.Logger) {
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureUpdateTimeout)
	defer cancel()

	failed := core.StatusFailed
	msg := failureMessage(cause)
	if _, err := p.repo.UpdateDocument(updateCtx, documentID, storage.DocumentUpdate{
		Status: &failed,
		Error:  &msg,
	}); err != nil {
		logger.Error("recording ingestion failure",
			slog.String("cause", msg),
			slog.String("error", err.Error()))
	}

	p.publish(Event{Type: EventFailed, DocumentID: documentID, Error: msg, Stage: stageOf(cause)})
	logger.Warn("ingestion failed", slog.String("error", msg))
}

// failureMessage renders the stored error string. Parse failures with no
// extractable text keep their message verbatim so clients can match on it.
func failureMessage(cause error) string {
	if errors.Is(cause, ErrNoTextContent) {
		return ErrNoTextContent.Error()
	}
	return cause.Error()
}

func stageOf(cause error) Stage {
	var ingErr *Error
	if errors.As(cause, &ingErr) {
		return ingErr.Stage
	}
	return ""
}

func (p *Pipeline) setStatus(ctx context.Context, documentID uuid.UUID, status core.Status) (*core.Document, error) {
	return p.repo.UpdateDocument(ctx, documentID, storage.DocumentUpdate{Status: &status})
}

func (p *Pipeline) progress(documentID uuid.UUID, fraction float64, stage Stage, processed, total int) {
	p.publish(Event{
		Type:            EventProgress,
		DocumentID:      documentID,
		Progress:        fraction,
		Stage:           stage,
		ChunksProcessed: processed,
		ChunksTotal:     total,
	})
}

func (p *Pipeline) publish(event Event) {
	event.Timestamp = time.Now()
	p.events.Publish(event)
}

// taggingExcerpt bounds the text sent to the tag model, marking truncation
// so the model knows it saw a prefix.
func taggingExcerpt(text string) string {
	if len(text) <= tagExcerptLimit {
		return text
	}
	return text[:tagExcerptLimit] + "\n[content truncated]"
}
