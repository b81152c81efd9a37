package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/kb/ai"
	"github.com/kestrel-labs/kb/ai/mock"
	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/storage/storagetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collectSink records events in order, safe for concurrent publishers.
type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func createDocument(t *testing.T, repo *storagetest.Repository, contentType core.ContentType, tags []string) *core.Document {
	t.Helper()
	doc, err := repo.CreateDocument(context.Background(), &core.Document{
		Name:        "test-doc",
		Filename:    "test-doc.md",
		ContentType: contentType,
		Tags:        tags,
	})
	require.NoError(t, err)
	return doc
}

func TestPipeline_MarkdownDocumentBecomesReady(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	provider.TaggingDisabled = true
	sink := &collectSink{}

	pipeline := NewPipeline(repo, provider,
		WithEventSink(sink),
		WithPipelineLogger(testLogger()))

	doc := createDocument(t, repo, core.ContentTypeMarkdown, []string{"manual"})
	content := []byte("# Introduction\n\nBasics here.\n\n# Usage\n\nRun it.")

	err := pipeline.IngestDocument(context.Background(), doc.ID, content)
	require.NoError(t, err)

	stored, err := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, stored.Status)
	assert.Equal(t, 2, stored.ChunkCount)
	assert.Empty(t, stored.Error)
	assert.Positive(t, stored.TokenCount)
	assert.NotEmpty(t, stored.RawText)
	// Tagging disabled: uploader tags survive untouched.
	assert.Equal(t, []string{"manual"}, stored.Tags)

	chunks, err := repo.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"Introduction"}, chunks[0].HeadingPath)
	assert.Equal(t, []string{"Usage"}, chunks[1].HeadingPath)
	for _, chunk := range chunks {
		assert.Len(t, chunk.Embedding, 1536)
	}
}

func TestPipeline_EmptyPDFFails(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()

	pipeline := NewPipeline(repo, provider, WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypePDF, nil)

	err := pipeline.IngestDocument(context.Background(), doc.ID, []byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTextContent)

	stored, getErr := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.Equal(t, "No text content found", stored.Error)
	assert.Equal(t, 0, stored.ChunkCount)
}

func TestPipeline_EmbeddingFailureMarksFailed(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string, onProgress ai.ProgressFunc) ([][]float32, error) {
		return nil, errors.New("rate limit exceeded")
	}

	pipeline := NewPipeline(repo, provider, WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypeMarkdown, nil)

	err := pipeline.IngestDocument(context.Background(), doc.ID, []byte("# T\n\nBody."))
	require.Error(t, err)

	stored, getErr := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "embed")
	assert.Contains(t, stored.Error, "rate limit exceeded")

	chunks, _ := repo.GetChunks(context.Background(), doc.ID)
	assert.Empty(t, chunks)
}

func TestPipeline_StorageFailureMarksFailed(t *testing.T) {
	repo := storagetest.NewRepository()
	repo.FailAddChunks = errors.New("disk full")
	provider := mock.NewMockProvider()
	provider.TaggingDisabled = true

	pipeline := NewPipeline(repo, provider, WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypeMarkdown, nil)

	err := pipeline.IngestDocument(context.Background(), doc.ID, []byte("# T\n\nBody."))
	require.Error(t, err)

	stored, getErr := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "store")
}

func TestPipeline_TagDerivationMergesAndCleans(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	provider.GetMockTagger().SuggestTagsFunc = func(ctx context.Context, excerpt string, headingPaths []string) (*ai.TagSuggestion, error) {
		assert.NotEmpty(t, headingPaths)
		return &ai.TagSuggestion{
			Tags:      []string{"  Golang ", "tutorial", "GOLANG"},
			Rationale: "test",
		}, nil
	}

	pipeline := NewPipeline(repo, provider, WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypeMarkdown, []string{"Tutorial"})

	err := pipeline.IngestDocument(context.Background(), doc.ID, []byte("# Guide\n\nGo basics."))
	require.NoError(t, err)

	stored, getErr := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusReady, stored.Status)
	assert.Equal(t, []string{"tutorial", "golang"}, stored.Tags)
}

func TestPipeline_TagDerivationFailureIsNonFatal(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	provider.GetMockTagger().SuggestTagsFunc = func(ctx context.Context, excerpt string, headingPaths []string) (*ai.TagSuggestion, error) {
		return nil, errors.New("model unavailable")
	}

	pipeline := NewPipeline(repo, provider, WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypeMarkdown, []string{"docs"})

	err := pipeline.IngestDocument(context.Background(), doc.ID, []byte("# T\n\nBody."))
	require.NoError(t, err)

	stored, getErr := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusReady, stored.Status)
	assert.Equal(t, []string{"docs"}, stored.Tags)
}

func TestPipeline_EventOrdering(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	provider.TaggingDisabled = true
	sink := &collectSink{}

	pipeline := NewPipeline(repo, provider,
		WithEventSink(sink),
		WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypeMarkdown, nil)

	require.NoError(t, pipeline.IngestDocument(context.Background(), doc.ID, []byte("# T\n\nBody.")))

	events := sink.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EventCompleted, events[len(events)-1].Type)

	lastProgress := 0.0
	for _, event := range events[1 : len(events)-1] {
		require.Equal(t, EventProgress, event.Type)
		assert.GreaterOrEqual(t, event.Progress, lastProgress)
		assert.LessOrEqual(t, event.Progress, 1.0)
		lastProgress = event.Progress
	}

	// Progress events carry the chunk counts once the document is chunked.
	byStage := make(map[Stage]Event)
	for _, event := range events {
		if event.Type == EventProgress {
			byStage[event.Stage] = event
		}
	}
	require.Contains(t, byStage, StageChunk)
	assert.Equal(t, 0, byStage[StageChunk].ChunksProcessed)
	assert.Equal(t, 1, byStage[StageChunk].ChunksTotal)
	require.Contains(t, byStage, StageEmbed)
	assert.Equal(t, 1, byStage[StageEmbed].ChunksProcessed)
	assert.Equal(t, 1, byStage[StageEmbed].ChunksTotal)
	require.Contains(t, byStage, StageTag)
	assert.Equal(t, 1, byStage[StageTag].ChunksProcessed)
	assert.Equal(t, 1, byStage[StageTag].ChunksTotal)
}

func TestPipeline_FailedEventOnError(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	sink := &collectSink{}

	pipeline := NewPipeline(repo, provider,
		WithEventSink(sink),
		WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypePDF, nil)

	require.Error(t, pipeline.IngestDocument(context.Background(), doc.ID, []byte{}))

	events := sink.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventFailed, last.Type)
	assert.Equal(t, StageParse, last.Stage)
	assert.Equal(t, "No text content found", last.Error)
}

func TestPipeline_CancelledContextMarksFailed(t *testing.T) {
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	cancelled := make(chan struct{})
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string, onProgress ai.ProgressFunc) ([][]float32, error) {
		close(cancelled)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	pipeline := NewPipeline(repo, provider, WithPipelineLogger(testLogger()))
	doc := createDocument(t, repo, core.ContentTypeMarkdown, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cancelled
		cancel()
	}()

	err := pipeline.IngestDocument(ctx, doc.ID, []byte("# T\n\nBody."))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)

	// The failure is still recorded despite the cancelled caller context.
	stored, getErr := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestPipeline_MissingDocument(t *testing.T) {
	repo := storagetest.NewRepository()
	pipeline := NewPipeline(repo, mock.NewMockProvider(), WithPipelineLogger(testLogger()))

	err := pipeline.IngestDocument(context.Background(), uuid.New(), []byte("x"))
	require.Error(t, err)
}
