package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusProcessing.Valid())
	assert.True(t, StatusReady.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusProcessing))
	assert.True(t, StatusProcessing.CanTransitionTo(StatusReady))
	assert.True(t, StatusProcessing.CanTransitionTo(StatusFailed))

	// Failed documents can be re-ingested.
	assert.True(t, StatusFailed.CanTransitionTo(StatusProcessing))

	// Ready is terminal; backwards and skipping moves are rejected.
	assert.False(t, StatusReady.CanTransitionTo(StatusProcessing))
	assert.False(t, StatusFailed.CanTransitionTo(StatusReady))
	assert.False(t, StatusProcessing.CanTransitionTo(StatusPending))
	assert.False(t, StatusPending.CanTransitionTo(StatusReady))
	assert.False(t, StatusPending.CanTransitionTo(StatusFailed))
}

func TestContentType_Valid(t *testing.T) {
	assert.True(t, ContentTypePDF.Valid())
	assert.True(t, ContentTypeMarkdown.Valid())
	assert.False(t, ContentType("application/msword").Valid())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
	assert.Equal(t, 25, EstimateTokens(stringOfLen(100)))
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
