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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/kestrel-labs/kb/ai"
)

// Tagger implements ai.TagSuggester using OpenAI-compatible chat APIs.
type Tagger struct {
	client llms.Model
	logger *slog.Logger
}

// tagAnalysis is the wrapper structure for the LLM's JSON response.
type tagAnalysis struct {
	Tags      []string `json:"tags"`
	Rationale string   `json:"rationale"`
}

// newTagger is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTagger(config *ai.Config) (*Tagger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.TagModel == "" {
		return nil, fmt.Errorf("%w: no tag model configured", ai.ErrTagSuggestionFailed)
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.TagModel),
	)
	if err != nil {
		return nil, err
	}

	return &Tagger{
		client: client,
		logger: slog.Default().With("component", "openai-tagger"),
	}, nil
}

// NewTagger creates a new tag suggester using the provided configuration.
//
// Returns ai.TagSuggester interface to enforce abstraction.
func NewTagger(config *ai.Config) (ai.TagSuggester, error) {
	return newTagger(config)
}

// SuggestTags asks the model for 5-10 descriptive tags for the excerpt and
// heading outline, with a short supporting rationale.
func (t *Tagger) SuggestTags(ctx context.Context, excerpt string, headingPaths []string) (*ai.TagSuggestion, error) {
	content := []llms.MessageContent{
		{
			Role: schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(taggingSystemPrompt),
			},
		},
		{
			Role: schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildTaggingInput(excerpt, headingPaths)),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result tagAnalysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := t.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			t.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, fmt.Errorf("%w: %v", ai.ErrTagSuggestionFailed, err)
		}

		if len(response.Choices) < 1 {
			t.logger.Debug("no choices returned from model")
			return &ai.TagSuggestion{}, nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			t.logger.Warn("error parsing tagger response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		t.logger.Error("failed to parse tagger response after retries", "err", lastErr)
		return nil, fmt.Errorf("%w: %v", ai.ErrTagSuggestionFailed, lastErr)
	}

	t.logger.Debug("suggested tags", "count", len(result.Tags))

	return &ai.TagSuggestion{
		Tags:      result.Tags,
		Rationale: result.Rationale,
	}, nil
}
