package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel implements llms.Model returning canned responses in sequence.
type fakeModel struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.responses[idx]}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, nil, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func newTestTagger(model llms.Model) *Tagger {
	return &Tagger{client: model, logger: testLogger()}
}

func TestSuggestTags_ParsesStructuredResponse(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"tags": ["go", "concurrency", "worker pools", "channels", "scheduling"], "rationale": "Covers Go concurrency patterns."}`,
	}}
	tagger := newTestTagger(model)

	suggestion, err := tagger.SuggestTags(context.Background(), "Goroutines and channels...", []string{"Concurrency > Channels"})
	require.NoError(t, err)
	assert.Len(t, suggestion.Tags, 5)
	assert.Contains(t, suggestion.Tags, "concurrency")
	assert.NotEmpty(t, suggestion.Rationale)
	assert.Equal(t, 1, model.calls)
}

func TestSuggestTags_StripsCodeFences(t *testing.T) {
	model := &fakeModel{responses: []string{
		"```json\n{\"tags\": [\"databases\"], \"rationale\": \"ok\"}\n```",
	}}
	tagger := newTestTagger(model)

	suggestion, err := tagger.SuggestTags(context.Background(), "excerpt", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"databases"}, suggestion.Tags)
}

func TestSuggestTags_RetriesMalformedJSON(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"tags": [truncated`,
		`{"tags": ["retry"], "rationale": "second attempt parsed"}`,
	}}
	tagger := newTestTagger(model)

	suggestion, err := tagger.SuggestTags(context.Background(), "excerpt", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"retry"}, suggestion.Tags)
	assert.Equal(t, 2, model.calls)
}

func TestSuggestTags_RepairsMissingKeyQuotes(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{tags": ["fixed"], rationale": "missing opening quotes"}`,
	}}
	tagger := newTestTagger(model)

	suggestion, err := tagger.SuggestTags(context.Background(), "excerpt", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed"}, suggestion.Tags)
}

func TestSuggestTags_ModelError(t *testing.T) {
	tagger := newTestTagger(&fakeModel{err: errors.New("model offline")})

	_, err := tagger.SuggestTags(context.Background(), "excerpt", nil)
	assert.Error(t, err)
}

func TestRepairJSON(t *testing.T) {
	assert.Equal(t, `{"tags": []}`, repairJSON(`{tags": []}`))
	assert.Equal(t, `{"a": 1, "b": 2}`, repairJSON(`{"a": 1, b": 2}`))
	// Well-formed JSON is untouched.
	assert.Equal(t, `{"a": "x"}`, repairJSON(`{"a": "x"}`))
}
