// Package similarity ranks lesson chunks against a query embedding using
// exact cosine similarity.
//
// The scan is brute force, O(chunks x dimension). At per-document scale
// (tens of chunks) this beats any index structure; if corpus size grows
// materially, an approximate nearest-neighbor index can replace it as long
// as the ordering and tie-break contract is preserved.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/brightpath/lessond/internal/store"
)

// DefaultLimit is the top-K cutoff applied when callers pass limit <= 0.
const DefaultLimit = 5

var (
	// ErrDimensionMismatch indicates the query and chunk embeddings have
	// different lengths. This usually means the embedding model changed
	// without a reindex; the fix is a full rebuild, not a fallback.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroVector indicates a vector with zero magnitude, for which
	// cosine similarity is undefined.
	ErrZeroVector = errors.New("zero-magnitude vector")
)

// Scored is a chunk together with its similarity to the query.
type Scored struct {
	Chunk store.Chunk
	Score float32
}

// Cosine returns the cosine similarity dot(a,b)/(|a|*|b|) of two vectors.
// The result lies in [-1, 1] for non-zero vectors.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// Rank scores every chunk against the query embedding and returns the top
// limit chunks ordered by descending score. Equal scores break ties by
// ascending chunk index, so identical inputs always produce identical
// output. A limit <= 0 falls back to DefaultLimit.
func Rank(query []float32, chunks []store.Chunk, limit int) ([]Scored, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	scored := make([]Scored, 0, len(chunks))
	for _, c := range chunks {
		score, err := Cosine(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring chunk %d: %w", c.Index, err)
		}
		scored = append(scored, Scored{Chunk: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
