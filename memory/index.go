package memory

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrDimensionMismatch reports a vector whose length differs from the index
// dimension. This is a caller error, never recovered silently.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one search result: the insertion position of a stored vector and
// its squared Euclidean distance from the query.
type Hit struct {
	Position int
	Distance float32
}

// Index is a flat, append-only nearest-neighbor index over fixed-dimension
// vectors. Search is an exhaustive scan; with conversational memory the
// vector count stays small enough that exactness beats any approximate
// structure.
//
// Index is not safe for concurrent use; Store serializes access.
type Index struct {
	dim     int
	vectors [][]float32
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the vector dimension.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of stored vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Add appends a vector and returns its position.
func (ix *Index) Add(vec []float32) (int, error) {
	if len(vec) != ix.dim {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	ix.vectors = append(ix.vectors, stored)
	return len(ix.vectors) - 1, nil
}

// Search returns the k nearest stored vectors to query, ascending by squared
// Euclidean distance. Ties keep insertion order, earlier positions first.
// k is clamped to the number of stored vectors; searching an empty index
// returns an empty result without error.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	hits := make([]Hit, len(ix.vectors))
	for i, vec := range ix.vectors {
		hits[i] = Hit{Position: i, Distance: squaredDistance(query, vec)}
	}
	// Stable sort preserves insertion order between equal distances.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits[:k], nil
}

func squaredDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// indexSnapshot is the on-disk form of an Index.
type indexSnapshot struct {
	Dim     int
	Vectors [][]float32
}

// Save writes the index snapshot atomically (temp file + rename), so a crash
// mid-write never leaves a half-written index behind.
func (ix *Index) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(indexSnapshot{Dim: ix.dim, Vectors: ix.vectors}); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index snapshot: %w", err)
	}
	return nil
}

// LoadIndex reads a snapshot written by Save. It validates the snapshot
// shape; any inconsistency is reported as an error so the store can reset.
func LoadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var snap indexSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index snapshot: %w", err)
	}
	if snap.Dim <= 0 {
		return nil, fmt.Errorf("invalid index snapshot: dimension %d", snap.Dim)
	}
	for i, vec := range snap.Vectors {
		if len(vec) != snap.Dim {
			return nil, fmt.Errorf("invalid index snapshot: vector %d has %d values, want %d", i, len(vec), snap.Dim)
		}
	}
	return &Index{dim: snap.Dim, vectors: snap.Vectors}, nil
}
