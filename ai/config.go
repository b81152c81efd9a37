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

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Host is the base URL for the OpenAI-compatible API.
	// Example: "https://api.openai.com/v1"
	Host string

	// APIKey authenticates requests. Use "none" for local services that do
	// not require authentication.
	APIKey string

	// EmbeddingModel is the model identifier used for text embeddings.
	// Example: "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingDimensions is the dimensionality of the embedding vectors
	// produced by EmbeddingModel. Default: 1536
	EmbeddingDimensions int

	// TagModel is the model identifier used for tag derivation. When empty,
	// tag derivation is disabled and the provider returns a nil TagSuggester.
	TagModel string

	// BatchSize is the maximum number of texts per embedding API call.
	// Default: 100
	BatchSize int

	// MaxConcurrentBatches caps simultaneous in-flight embedding API calls
	// within one EmbedTexts call. Default: 3
	MaxConcurrentBatches int

	// MaxRetries is the number of attempts per embedding batch before the
	// whole call fails. Default: 3
	MaxRetries int

	// RetryBaseDelay is the backoff delay after the first failed attempt;
	// it doubles on each subsequent failure. Default: 1s
	RetryBaseDelay time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the API base URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingDimensions sets the embedding vector dimensionality.
func WithEmbeddingDimensions(dim int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimensions = dim
	}
}

// WithTagModel sets the tag derivation model. An empty value disables tag
// derivation.
func WithTagModel(model string) ConfigOption {
	return func(c *Config) {
		c.TagModel = model
	}
}

// WithBatchSize sets the maximum embedding batch size.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithMaxConcurrentBatches caps in-flight embedding API calls per EmbedTexts call.
func WithMaxConcurrentBatches(n int) ConfigOption {
	return func(c *Config) {
		c.MaxConcurrentBatches = n
	}
}

// WithMaxRetries sets the per-batch retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithRetryBaseDelay sets the base backoff delay.
func WithRetryBaseDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryBaseDelay = d
	}
}

// DefaultConfig returns a Config with defaults for the hosted OpenAI API.
func DefaultConfig() *Config {
	return &Config{
		Host:                 "https://api.openai.com/v1",
		APIKey:               "none",
		EmbeddingModel:       "text-embedding-3-small",
		EmbeddingDimensions:  1536,
		BatchSize:            100,
		MaxConcurrentBatches: 3,
		MaxRetries:           3,
		RetryBaseDelay:       time.Second,
	}
}

// NewConfig creates a Config with default values and applies the provided
// options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in canonical form. It adds the /v1
// suffix to the host if missing, which OpenAI-compatible APIs (Ollama,
// LocalAI, vLLM, etc) require.
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/")
		c.Host = c.Host + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.EmbeddingDimensions < 1 {
		return errors.New("ai config: EmbeddingDimensions must be positive")
	}
	if c.BatchSize < 1 {
		return errors.New("ai config: BatchSize must be positive")
	}
	if c.MaxConcurrentBatches < 1 {
		return errors.New("ai config: MaxConcurrentBatches must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("ai config: MaxRetries must be positive")
	}
	if c.RetryBaseDelay <= 0 {
		return errors.New("ai config: RetryBaseDelay must be positive")
	}
	return nil
}
