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


// Package storage provides the storage abstraction layer for the knowledge
// base.
//
// This package defines the repository interface that decouples storage
// implementation from business logic. The relational store is the single
// source of truth: the pipeline holds no authoritative state of its own and
// every mutation is write-through.
//
// # Constructor Return Type Pattern
//
// Public constructors return interface types to enforce abstraction:
//
//	repo, err := postgres.NewDocumentRepository(backend)  // storage.DocumentRepository
//
// # Implementations
//
//   - storage/postgres: production backend on PostgreSQL with pgvector
//   - storage/storagetest: in-memory repository for tests
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines.
package storage
