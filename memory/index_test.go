package memory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratatoskr-ai/ratatoskr-go/memory"
)

func TestIndexSearchOrdering(t *testing.T) {
	ix := memory.NewIndex(2)
	for _, v := range [][]float32{{0, 0}, {3, 0}, {1, 0}} {
		_, err := ix.Add(v)
		require.NoError(t, err)
	}

	hits, err := ix.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, float32(0), hits[0].Distance)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, float32(1), hits[1].Distance)
}

func TestIndexSearchTiesKeepInsertionOrder(t *testing.T) {
	ix := memory.NewIndex(2)
	_, err := ix.Add([]float32{1, 1})
	require.NoError(t, err)
	_, err = ix.Add([]float32{1, 1})
	require.NoError(t, err)

	hits, err := ix.Search([]float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, 1, hits[1].Position)
}

func TestIndexSearchClampsK(t *testing.T) {
	ix := memory.NewIndex(2)
	_, err := ix.Add([]float32{1, 2})
	require.NoError(t, err)

	hits, err := ix.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndexSearchEmpty(t *testing.T) {
	ix := memory.NewIndex(3)
	hits, err := ix.Search([]float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexDimensionMismatch(t *testing.T) {
	ix := memory.NewIndex(3)
	_, err := ix.Add([]float32{1, 2})
	assert.ErrorIs(t, err, memory.ErrDimensionMismatch)

	_, err = ix.Search([]float32{1}, 1)
	assert.ErrorIs(t, err, memory.ErrDimensionMismatch)
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob")

	ix := memory.NewIndex(2)
	_, err := ix.Add([]float32{1, 0})
	require.NoError(t, err)
	_, err = ix.Add([]float32{0, 1})
	require.NoError(t, err)
	require.NoError(t, ix.Save(path))

	loaded, err := memory.LoadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, 2, loaded.Dim())

	hits, err := loaded.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Position)
}

func TestLoadIndexTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, os.WriteFile(path, []byte("not a gob snapshot"), 0o644))

	_, err := memory.LoadIndex(path)
	assert.Error(t, err)
}
