package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/kb/ai/mock"
	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/ingestion"
	"github.com/kestrel-labs/kb/search"
	"github.com/kestrel-labs/kb/storage"
	"github.com/kestrel-labs/kb/storage/storagetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	server   *Server
	repo     *storagetest.Repository
	provider *mock.MockProvider
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := storagetest.NewRepository()
	provider := mock.NewMockProvider()
	provider.TaggingDisabled = true

	pipeline := ingestion.NewPipeline(repo, provider,
		ingestion.WithPipelineLogger(testLogger()))
	service := ingestion.NewService(pipeline, ingestion.WithServiceLogger(testLogger()))
	searcher := search.NewSearcher(provider.Embedder(), repo, search.WithLogger(testLogger()))

	srv := New(repo, service, searcher,
		WithLogger(testLogger()),
		WithUploadDir(t.TempDir()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.Cleanup(ctx)
	})

	return &testEnv{
		server:   srv,
		repo:     repo,
		provider: provider,
		handler:  srv.Handler(),
	}
}

func multipartUpload(t *testing.T, filename, contentType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestUploadDocument_MarkdownBecomesReady(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "guide.md", "text/markdown",
		[]byte("# Intro\n\nBasics.\n\n# Usage\n\nRun it."),
		map[string]string{"name": "Guide", "tags": "docs, Golang"})

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeBody[documentResponse](t, rec)
	assert.Equal(t, "Guide", resp.Name)
	assert.Equal(t, "text/markdown", resp.ContentType)
	assert.Equal(t, []string{"docs", "golang"}, resp.Tags)
	assert.Equal(t, string(core.StatusPending), resp.Status)

	require.Eventually(t, func() bool {
		doc, err := env.repo.GetDocument(context.Background(), resp.ID)
		return err == nil && doc.Status == core.StatusReady
	}, 5*time.Second, 10*time.Millisecond)

	doc, err := env.repo.GetDocument(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.ChunkCount)
}

func TestUploadDocument_ExtensionFallback(t *testing.T) {
	env := newTestEnv(t)

	for _, filename := range []string{"notes.md", "notes.markdown", "notes.mdx"} {
		body, contentType := multipartUpload(t, filename, "application/octet-stream",
			[]byte("# Notes\n\nContent."), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code, filename)
	}
}

func TestUploadDocument_UnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "image.png", "image/png", []byte{0x89, 0x50}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "unsupported file type", resp["error"])
	assert.Equal(t, 0, env.repo.DocumentCount())
}

func TestUploadDocument_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("name", "no file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDocuments_OmitsRawText(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.repo.CreateDocument(context.Background(), &core.Document{
		Name:        "doc",
		ContentType: core.ContentTypeMarkdown,
		RawText:     "secret raw text",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret raw text")
	assert.NotContains(t, rec.Body.String(), "raw_text")
}

func TestGetDocument_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/documents/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t)
	doc, err := env.repo.CreateDocument(context.Background(), &core.Document{
		Name:        "doc",
		ContentType: core.ContentTypeMarkdown,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID.String(), nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = env.repo.GetDocument(context.Background(), doc.ID)
	require.Error(t, err)
}

func TestUpdateTags_Cleans(t *testing.T) {
	env := newTestEnv(t)
	doc, err := env.repo.CreateDocument(context.Background(), &core.Document{
		Name:        "doc",
		ContentType: core.ContentTypeMarkdown,
	})
	require.NoError(t, err)

	payload := bytes.NewBufferString(`{"tags": ["  Golang ", "golang", "docs"]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/documents/"+doc.ID.String()+"/tags", payload)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[documentResponse](t, rec)
	assert.Equal(t, []string{"golang", "docs"}, resp.Tags)
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc, err := env.repo.CreateDocument(ctx, &core.Document{
		Name:        "doc",
		ContentType: core.ContentTypeMarkdown,
	})
	require.NoError(t, err)
	require.NoError(t, env.repo.AddChunks(ctx, []*core.DocumentChunk{{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Content:    "identical content",
		TokenCount: 5,
		Embedding:  mock.DeterministicVector("identical content", 1536),
	}}))
	processing := core.StatusProcessing
	_, err = env.repo.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{Status: &processing})
	require.NoError(t, err)
	ready := core.StatusReady
	one := 1
	_, err = env.repo.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{
		Status:     &ready,
		ChunkCount: &one,
	})
	require.NoError(t, err)

	// The mock embedder is deterministic: the same text embeds to the same
	// vector, giving similarity 1.0.
	payload := bytes.NewBufferString(`{"query": "identical content"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/search", payload)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string][]searchResultResponse](t, rec)
	require.Len(t, resp["results"], 1)
	assert.InDelta(t, 1.0, resp["results"][0].Similarity, 1e-5)
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	payload := bytes.NewBufferString(`{"query": "  "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/search", payload)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveContentType(t *testing.T) {
	tests := []struct {
		declared string
		filename string
		want     core.ContentType
		ok       bool
	}{
		{"application/pdf", "doc.pdf", core.ContentTypePDF, true},
		{"text/markdown", "doc.md", core.ContentTypeMarkdown, true},
		{"text/x-markdown", "doc.md", core.ContentTypeMarkdown, true},
		{"text/plain", "doc.txt", core.ContentTypeMarkdown, true},
		{"text/markdown; charset=utf-8", "doc.md", core.ContentTypeMarkdown, true},
		{"application/octet-stream", "doc.md", core.ContentTypeMarkdown, true},
		{"application/octet-stream", "doc.markdown", core.ContentTypeMarkdown, true},
		{"application/octet-stream", "doc.mdx", core.ContentTypeMarkdown, true},
		{"application/octet-stream", "doc.pdf", core.ContentTypePDF, true},
		{"", "doc.MD", core.ContentTypeMarkdown, true},
		{"application/octet-stream", "doc.bin", "", false},
		{"image/png", "doc.png", "", false},
	}
	for _, tc := range tests {
		got, ok := resolveContentType(tc.declared, tc.filename)
		assert.Equal(t, tc.ok, ok, "%s %s", tc.declared, tc.filename)
		assert.Equal(t, tc.want, got, "%s %s", tc.declared, tc.filename)
	}
}
