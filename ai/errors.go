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


package ai

import "errors"

var (
	// ErrEmbeddingFailed is the single error kind all embedding failures are
	// normalized into: non-2xx responses, malformed response bodies and
	// transport-level failures alike. Wrapped errors carry the detail.
	ErrEmbeddingFailed = errors.New("embedding request failed")

	// ErrTagSuggestionFailed indicates a tag derivation call failed. Callers
	// treat this as a non-fatal degradation.
	ErrTagSuggestionFailed = errors.New("tag suggestion failed")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
