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
	"sync"

	"github.com/google/uuid"
)

// ProgressTracker keeps the latest known progress fraction per document.
// It implements EventSink so it can be wired directly into the pipeline,
// and is safe for concurrent use.
type ProgressTracker struct {
	mu       sync.RWMutex
	progress map[uuid.UUID]float64
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		progress: make(map[uuid.UUID]float64),
	}
}

var _ EventSink = (*ProgressTracker)(nil)

// Publish records progress from lifecycle events. Terminal events drop the
// document from the tracker: once ingestion ends, the document row carries
// the outcome, and keeping entries around would grow the map for the life
// of the process.
func (t *ProgressTracker) Publish(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Type {
	case EventStarted:
		t.progress[event.DocumentID] = 0
	case EventProgress:
		if event.Progress > t.progress[event.DocumentID] {
			t.progress[event.DocumentID] = event.Progress
		}
	case EventCompleted, EventFailed:
		delete(t.progress, event.DocumentID)
	}
}

// Progress returns the latest fraction for a document and whether the
// document is being tracked.
func (t *ProgressTracker) Progress(documentID uuid.UUID) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.progress[documentID]
	return p, ok
}

// Snapshot returns a copy of all tracked progress values.
func (t *ProgressTracker) Snapshot() map[uuid.UUID]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[uuid.UUID]float64, len(t.progress))
	for id, p := range t.progress {
		out[id] = p
	}
	return out
}

// Forget removes a document from the tracker.
func (t *ProgressTracker) Forget(documentID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.progress, documentID)
}
