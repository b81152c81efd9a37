// Package openai implements the ai interfaces against OpenAI-compatible
// APIs: a raw HTTP embeddings client that owns batching, bounded parallelism
// and retry, and a langchaingo-backed chat client for structured tag
// derivation.
package openai
