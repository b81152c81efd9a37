// Package postgres implements the document repository on PostgreSQL with
// the pgvector extension.
//
// The backend registers pgvector types on every pooled connection and
// applies the schema migration at startup. Similarity search runs entirely
// inside the database: candidate filtering, cosine ranking and truncation
// happen in one query against the ivfflat index.
package postgres
