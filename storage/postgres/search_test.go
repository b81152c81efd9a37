package postgres

import (
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/kb/storage"
)

func TestBuildSearchQuery_NoTags(t *testing.T) {
	opts := storage.SearchOptions{TopK: 5, Threshold: 0.7}
	vec := pgvector.NewVector([]float32{0.1, 0.2})

	query, args := buildSearchQuery(vec, opts)

	require.Len(t, args, 3)
	assert.Equal(t, vec, args[0])
	assert.Equal(t, 0.7, args[1])
	assert.Equal(t, 5, args[2])

	assert.Contains(t, query, "d.status = 'ready'")
	assert.NotContains(t, query, "d.tags &&")
	assert.Contains(t, query, "1 - (c.embedding <=> $1)")
	assert.Contains(t, query, "WHERE similarity >= $2")
	assert.Contains(t, query, "LIMIT $3")
	assert.Contains(t, query, "ORDER BY similarity DESC")
}

func TestBuildSearchQuery_WithTags(t *testing.T) {
	opts := storage.SearchOptions{
		TopK:      3,
		Threshold: 0.5,
		Tags:      []string{"golang", "databases"},
	}
	vec := pgvector.NewVector([]float32{0.1})

	query, args := buildSearchQuery(vec, opts)

	require.Len(t, args, 4)
	assert.Equal(t, []string{"golang", "databases"}, args[1])
	assert.Equal(t, 0.5, args[2])
	assert.Equal(t, 3, args[3])

	assert.Contains(t, query, "d.tags && $2")
	assert.Contains(t, query, "WHERE similarity >= $3")
	assert.Contains(t, query, "LIMIT $4")
}

func TestBuildSearchQuery_TagFilterInsideCandidateSet(t *testing.T) {
	opts := storage.SearchOptions{TopK: 5, Threshold: 0.7, Tags: []string{"api"}}

	query, _ := buildSearchQuery(pgvector.NewVector([]float32{0.1}), opts)

	// The tag predicate must be part of the CTE, not applied after ranking.
	outerSelect := strings.Index(query, "FROM scored_chunks")
	require.Greater(t, outerSelect, 0)
	assert.Contains(t, query[:outerSelect], "d.tags && $2")
}

func TestSearchOptions_Normalize(t *testing.T) {
	opts := storage.SearchOptions{}.Normalize()
	assert.Equal(t, 5, opts.TopK)
	assert.Equal(t, 0.7, opts.Threshold)

	opts = storage.SearchOptions{TopK: 10, Threshold: 0.3}.Normalize()
	assert.Equal(t, 10, opts.TopK)
	assert.Equal(t, 0.3, opts.Threshold)
}
