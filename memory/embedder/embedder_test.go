package embedder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratatoskr-ai/ratatoskr-go/memory/embedder"
	"github.com/ratatoskr-ai/ratatoskr-go/memory/embedder/hash"
)

func TestEmbedEmptyText(t *testing.T) {
	s := embedder.New(embedder.Config{})

	_, err := s.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, embedder.ErrEmptyText)
}

func TestEmbedFallsBackToHash(t *testing.T) {
	// No backends configured, the chain must end at the hash embedder.
	s := embedder.New(embedder.Config{})

	vec, err := s.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, hash.Dimensions)
	assert.Equal(t, hash.Dimensions, s.Dimensions())
}

func TestEmbedDeterministic(t *testing.T) {
	s := embedder.New(embedder.Config{})
	ctx := context.Background()

	a, err := s.Embed(ctx, "the same text")
	require.NoError(t, err)
	b, err := s.Embed(ctx, "the same text")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := s.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestHashEmbedderUnitNorm(t *testing.T) {
	e := hash.New()
	vec, err := e.Embed(context.Background(), "norm check")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-4)
}
