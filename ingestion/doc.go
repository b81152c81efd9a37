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


// Package ingestion turns uploaded files into searchable knowledge.
//
// The pipeline runs five stages per document: parse the file into plain
// text, chunk it along its structure, embed the chunks, derive tags, and
// store everything. The document row in storage carries the lifecycle
// state (pending, processing, ready, failed); a document is never READY
// without its chunks stored.
//
// # Concurrency
//
// Two limiters stack: the pipeline admits a bounded number of documents at
// once, and within each document the embedder runs a bounded number of
// batch requests. Their product caps total in-flight calls to the
// embedding API.
//
// # Failure Semantics
//
// Parse, chunk, embed and store failures mark the document FAILED with a
// stage-qualified message. Tag derivation is the exception: its failures
// are logged and the document proceeds without derived tags. Cancellation
// is treated as a failure and recorded on a detached context so documents
// do not get stuck in PROCESSING.
package ingestion
