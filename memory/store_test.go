package memory_test

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratatoskr-ai/ratatoskr-go/memory"
)

// stubEmbedder maps text to a small deterministic vector so identical texts
// embed identically and recall is reproducible without a model.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>32)) / float32(1<<31)
	}
	return vec, nil
}

func (stubEmbedder) Dimensions() int { return 8 }

func openStore(t *testing.T, dir string, opts ...memory.StoreOption) *memory.Store {
	t.Helper()
	s, err := memory.Open(dir, stubEmbedder{}, opts...)
	require.NoError(t, err)
	return s
}

func TestStoreRememberRecallRoundTrip(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	id, err := s.Remember(ctx, "the user's cat is named Freya")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := s.Recall(ctx, "the user's cat is named Freya", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "the user's cat is named Freya", got[0])
}

func TestStoreEmptyTextIsNoOp(t *testing.T) {
	s := openStore(t, t.TempDir())

	id, err := s.Remember(context.Background(), "   \n\t ")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 0, s.Len())
}

func TestStoreRecallOnEmptyStore(t *testing.T) {
	s := openStore(t, t.TempDir())

	got, err := s.Recall(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreRecallEmptyQuery(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	_, err := s.Remember(ctx, "something")
	require.NoError(t, err)

	got, err := s.Recall(ctx, "  ", 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreRecallDefaultK(t *testing.T) {
	s := openStore(t, t.TempDir(), memory.WithRecallK(2))
	ctx := context.Background()

	for _, text := range []string{"alpha", "beta", "gamma"} {
		_, err := s.Remember(ctx, text)
		require.NoError(t, err)
	}

	got, err := s.Recall(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0])
}

func TestStoreDuplicatesAppend(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	id1, err := s.Remember(ctx, "repeated fact")
	require.NoError(t, err)
	id2, err := s.Remember(ctx, "repeated fact")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 2, s.Len())
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	_, err := s.Remember(ctx, "fact A")
	require.NoError(t, err)
	_, err = s.Remember(ctx, "fact B")
	require.NoError(t, err)

	reopened := openStore(t, dir)
	assert.Equal(t, 2, reopened.Len())

	got, err := reopened.Recall(ctx, "fact A", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fact A", got[0])
}

func TestStoreResetsOnCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	_, err := s.Remember(ctx, "soon to be lost")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.gob"), []byte("garbage"), 0o644))

	reopened := openStore(t, dir)
	assert.Equal(t, 0, reopened.Len())

	// Still fully functional after the reset.
	_, err = reopened.Remember(ctx, "fresh start")
	require.NoError(t, err)
	got, err := reopened.Recall(ctx, "fresh start", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh start", got[0])
}

func TestStoreResetsOnLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	_, err := s.Remember(ctx, "kept")
	require.NoError(t, err)

	// Simulate a crash between the document append and the index snapshot.
	f, err := os.OpenFile(filepath.Join(dir, "documents.jsonl"), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"x","text":"orphan","embedding":[0,0,0,0,0,0,0,0],"created_at":"2026-01-01T00:00:00Z"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := openStore(t, dir)
	assert.Equal(t, 0, reopened.Len())
}
