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


// Package kb assembles the knowledge base: document storage, the ingestion
// pipeline and semantic search behind one facade.
//
// Typical usage:
//
//	cfg, err := config.Load()
//	base, err := kb.Open(ctx, cfg)
//	defer base.Close(ctx)
//
//	base.QueueIngestion(documentID, fileBytes)
//	results, err := base.Search(ctx, search.Query{Text: "how do I configure retries?"})
package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kestrel-labs/kb/ai"
	"github.com/kestrel-labs/kb/ai/mock"
	"github.com/kestrel-labs/kb/ai/openai"
	"github.com/kestrel-labs/kb/config"
	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/ingestion"
	"github.com/kestrel-labs/kb/search"
	"github.com/kestrel-labs/kb/storage"
	"github.com/kestrel-labs/kb/storage/postgres"
)

// KnowledgeBase wires the repository, AI provider, ingestion service and
// searcher together and owns their lifecycles.
type KnowledgeBase struct {
	repo     storage.DocumentRepository
	provider ai.Provider
	service  *ingestion.Service
	searcher *search.Searcher
	logger   *slog.Logger
}

// Option configures a KnowledgeBase built with New.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	maxConcurrent int
	eventSink     ingestion.EventSink
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxConcurrentIngestions bounds simultaneous document ingestions.
func WithMaxConcurrentIngestions(n int) Option {
	return func(o *options) {
		o.maxConcurrent = n
	}
}

// WithEventSink registers a sink for ingestion lifecycle events.
func WithEventSink(sink ingestion.EventSink) Option {
	return func(o *options) {
		o.eventSink = sink
	}
}

// New assembles a knowledge base from an existing repository and provider.
// The knowledge base takes ownership of both and closes them on Close.
func New(repo storage.DocumentRepository, provider ai.Provider, opts ...Option) *KnowledgeBase {
	o := options{
		logger:        slog.Default(),
		maxConcurrent: 2,
	}
	for _, opt := range opts {
		opt(&o)
	}

	pipelineOpts := []ingestion.PipelineOption{
		ingestion.WithMaxConcurrent(o.maxConcurrent),
		ingestion.WithPipelineLogger(o.logger),
	}
	if o.eventSink != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithEventSink(o.eventSink))
	}
	pipeline := ingestion.NewPipeline(repo, provider, pipelineOpts...)
	service := ingestion.NewService(pipeline, ingestion.WithServiceLogger(o.logger))
	searcher := search.NewSearcher(provider.Embedder(), repo, search.WithLogger(o.logger))

	return &KnowledgeBase{
		repo:     repo,
		provider: provider,
		service:  service,
		searcher: searcher,
		logger:   o.logger,
	}
}

// Open builds a knowledge base from configuration: a PostgreSQL repository
// and an OpenAI-compatible provider, or in-process mocks when cfg.MockAI
// is set.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*KnowledgeBase, error) {
	logger := slog.Default()
	for _, opt := range opts {
		var probe options
		opt(&probe)
		if probe.logger != nil {
			logger = probe.logger
		}
	}

	backend, err := postgres.OpenBackend(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("opening storage backend: %w", err)
	}
	repo := postgres.NewDocumentRepository(backend)

	var provider ai.Provider
	if cfg.MockAI {
		provider = mock.NewMockProvider()
		logger.Warn("using mock AI provider")
	} else {
		provider, err = openai.NewProvider(ai.NewConfig(
			ai.WithHost(cfg.OpenAIHost),
			ai.WithAPIKey(cfg.OpenAIKey),
			ai.WithEmbeddingModel(cfg.EmbeddingModel),
			ai.WithTagModel(cfg.TagModel),
		))
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("creating AI provider: %w", err)
		}
	}

	return New(repo, provider, withConfigDefaults(cfg, opts)...), nil
}

// withConfigDefaults turns configuration values into options applied before
// the caller's, so explicit options always win over configuration.
func withConfigDefaults(cfg *config.Config, opts []Option) []Option {
	defaults := []Option{
		WithMaxConcurrentIngestions(cfg.MaxConcurrentIngestions),
	}
	return append(defaults, opts...)
}

// Repository exposes document storage.
func (b *KnowledgeBase) Repository() storage.DocumentRepository {
	return b.repo
}

// IngestionService exposes the background ingestion service.
func (b *KnowledgeBase) IngestionService() *ingestion.Service {
	return b.service
}

// Searcher exposes the semantic searcher.
func (b *KnowledgeBase) Searcher() *search.Searcher {
	return b.searcher
}

// CreateDocument registers a document in PENDING state.
func (b *KnowledgeBase) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	return b.repo.CreateDocument(ctx, doc)
}

// QueueIngestion starts ingesting a previously created document in the
// background.
func (b *KnowledgeBase) QueueIngestion(documentID uuid.UUID, data []byte) error {
	return b.service.QueueIngestion(documentID, data)
}

// Search answers a semantic query against ready documents.
func (b *KnowledgeBase) Search(ctx context.Context, query search.Query) ([]*core.SearchResult, error) {
	return b.searcher.Search(ctx, query)
}

// Close drains the ingestion service and releases the provider and
// repository. Errors are joined so a failing component never hides
// another.
func (b *KnowledgeBase) Close(ctx context.Context) error {
	var errs []error
	if err := b.service.Cleanup(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := b.provider.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
