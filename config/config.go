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


// Package config loads runtime configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the knowledge base.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string. Required.
	DatabaseURL string

	// OpenAIHost is the base URL of the embeddings API.
	OpenAIHost string

	// OpenAIKey authenticates against the embeddings API. Required unless
	// MockAI is set.
	OpenAIKey string

	// EmbeddingModel names the embedding model.
	EmbeddingModel string

	// TagModel names the chat model used for tag derivation. Empty
	// disables tag derivation.
	TagModel string

	// ServerPort is the HTTP listen port.
	ServerPort int

	// UploadDir is where uploaded files are staged.
	UploadDir string

	// MaxConcurrentIngestions bounds simultaneous document ingestions.
	MaxConcurrentIngestions int

	// MockAI replaces the AI provider with deterministic in-process mocks.
	// Development only.
	MockAI bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := &Config{
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		OpenAIHost:              getEnv("OPENAI_HOST", "https://api.openai.com/v1"),
		OpenAIKey:               getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:          getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		TagModel:                getEnv("TAG_MODEL", ""),
		ServerPort:              getEnvAsInt("SERVER_PORT", 8080),
		UploadDir:               getEnv("UPLOAD_DIR", "./uploads"),
		MaxConcurrentIngestions: getEnvAsInt("MAX_CONCURRENT_INGESTIONS", 2),
		MockAI:                  getEnvAsBool("MOCK_AI", false),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OpenAIKey == "" && !cfg.MockAI {
		return nil, fmt.Errorf("OPENAI_API_KEY is required unless MOCK_AI=true")
	}
	return cfg, nil
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
