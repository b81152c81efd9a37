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
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Service runs ingestions in the background and tracks them until they
// finish. Callers queue work and return immediately; outcomes land on the
// document row and on the event sink. Cleanup cancels whatever is still
// running and waits for the pipeline to record terminal states.
type Service struct {
	pipeline *Pipeline
	tracker  *ProgressTracker
	logger   *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for service operations.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a background ingestion service over the pipeline. The
// service installs its own progress tracker as an event sink in addition to
// whatever sink the pipeline already has.
func NewService(pipeline *Pipeline, opts ...ServiceOption) *Service {
	s := &Service{
		pipeline: pipeline,
		tracker:  NewProgressTracker(),
		logger:   slog.Default().With(slog.String("component", "ingestion-service")),
		active:   make(map[uuid.UUID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	pipeline.events = multiSink{s.tracker, pipeline.events}
	return s
}

// QueueIngestion starts ingesting the document in the background. Returns
// immediately once the job is tracked; the concurrency limit is enforced
// inside the pipeline, so queueing never blocks on other documents.
func (s *Service) QueueIngestion(documentID uuid.UUID, data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServiceClosed
	}
	if _, running := s.active[documentID]; running {
		s.mu.Unlock()
		return fmt.Errorf("document %s: %w", documentID, ErrAlreadyIngesting)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.active[documentID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, documentID)
			s.mu.Unlock()
			cancel()
		}()

		if err := s.pipeline.IngestDocument(ctx, documentID, data); err != nil {
			s.logger.Warn("background ingestion failed",
				slog.String("document_id", documentID.String()),
				slog.String("error", err.Error()))
		}
	}()

	return nil
}

// CancelIngestion cancels a running ingestion. Returns false when the
// document has no active job.
func (s *Service) CancelIngestion(documentID uuid.UUID) bool {
	s.mu.Lock()
	cancel, ok := s.active[documentID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Progress returns the latest progress fraction for a document and whether
// it is currently tracked.
func (s *Service) Progress(documentID uuid.UUID) (float64, bool) {
	return s.tracker.Progress(documentID)
}

// ActiveCount returns the number of ingestions currently running.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cleanup stops accepting new work, cancels running ingestions and waits
// for them to finish. Each cancelled pipeline run records a FAILED status
// on its document before returning. Returns the context error if the wait
// is cut short.
func (s *Service) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, cancel := range s.active {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("ingestion service drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for ingestions to stop: %w", ctx.Err())
	}
}
