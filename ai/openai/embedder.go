package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kestrel-labs/kb/ai"
)

// embeddingRequest is the wire format of an embedding API call.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the wire format of a successful embedding API reply.
// Vectors are returned in input order.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// embeddingErrorResponse carries the error field of a non-2xx reply.
type embeddingErrorResponse struct {
	Error json.RawMessage `json:"error"`
}

// Embedder implements ai.Embedder against an OpenAI-compatible embeddings
// endpoint. It owns batch splitting, bounded parallelism across batch calls
// and per-batch retry with exponential backoff.
type Embedder struct {
	httpClient     *http.Client
	endpoint       string
	apiKey         string
	model          string
	batchSize      int
	pool           *ants.Pool
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(config.MaxConcurrentBatches)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		endpoint:       strings.TrimSuffix(config.Host, "/") + "/embeddings",
		apiKey:         config.APIKey,
		model:          config.EmbeddingModel,
		batchSize:      config.BatchSize,
		pool:           pool,
		maxRetries:     config.MaxRetries,
		retryBaseDelay: config.RetryBaseDelay,
		logger:         slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates an embedding vector for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text}, nil)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ai.ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// EmbedTexts generates embedding vectors for multiple texts. The input is
// split into batches of at most BatchSize items; batches run under the
// worker pool so at most MaxConcurrentBatches API calls are in flight, each
// retried with exponential backoff. Results are returned in input order; on
// any batch failing all attempts, the whole call fails with
// ai.ErrEmbeddingFailed and no partial results.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string, onProgress ai.ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	total := len(texts)
	results := make([][]float32, total)
	numBatches := (total + e.batchSize - 1) / e.batchSize

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Progress fan-in: every batch reports through one channel drained by a
	// single goroutine, so concurrently completing batches cannot interleave
	// or lose callback invocations.
	var progressCh chan int
	var progressWG sync.WaitGroup
	if onProgress != nil {
		progressCh = make(chan int, numBatches)
		progressWG.Add(1)
		go func() {
			defer progressWG.Done()
			for n := range progressCh {
				onProgress(n, total)
			}
		}()
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for start := 0; start < total; start += e.batchSize {
		end := start + e.batchSize
		if end > total {
			end = total
		}
		batch := texts[start:end]
		offset := start

		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()

			if ctx.Err() != nil {
				fail(fmt.Errorf("%w: %v", ai.ErrEmbeddingFailed, ctx.Err()))
				return
			}

			vectors, err := e.embedBatchWithRetry(ctx, batch)
			if err != nil {
				fail(err)
				return
			}

			for i, vec := range vectors {
				results[offset+i] = vec
			}
			if progressCh != nil {
				progressCh <- len(batch)
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("%w: %v", ai.ErrEmbeddingFailed, submitErr))
			break
		}
	}

	wg.Wait()
	if progressCh != nil {
		close(progressCh)
		progressWG.Wait()
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// embedBatchWithRetry runs one batch call under the retry budget and
// normalizes the outcome into ai.ErrEmbeddingFailed.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var callErr error
		vectors, callErr = e.embedBatch(ctx, batch)
		return callErr
	}, e.maxRetries, e.retryBaseDelay)

	if err != nil {
		e.logger.Error("embedding batch failed", "size", len(batch), "attempts", e.maxRetries, "err", err)
		return nil, fmt.Errorf("%w: %v", ai.ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// embedBatch performs a single embedding API call for one batch.
func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, apiErrorDetail(raw))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %v", err)
	}
	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(parsed.Data))
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// apiErrorDetail extracts the error field of a non-2xx reply verbatim,
// falling back to the raw body.
func apiErrorDetail(raw []byte) string {
	var parsed embeddingErrorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Error) > 0 {
		detail := string(parsed.Error)
		// Unquote plain string error fields
		var s string
		if err := json.Unmarshal(parsed.Error, &s); err == nil {
			detail = s
		}
		return detail
	}
	return strings.TrimSpace(string(raw))
}

// Close releases the embedder's worker pool.
func (e *Embedder) Close() {
	e.pool.Release()
}
