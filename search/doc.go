// Package search answers semantic queries against ingested documents.
//
// A query is embedded with the same model used at ingestion time and ranked
// against chunk embeddings by cosine similarity. Only chunks of READY
// documents are candidates; optional tag filters narrow the candidate set
// before ranking rather than filtering ranked results.
package search
