package embeddings

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
)

// Fake is a deterministic in-memory Provider for tests. The same text
// always embeds to the same vector, so reindex-idempotence and ranking
// tests are reproducible without a live provider.
type Fake struct {
	dim int

	mu sync.Mutex
	// Err, when set, fails every call. Simulates an unreachable or
	// misconfigured provider.
	Err error
	// DocumentCalls and QueryCalls count invocations, letting tests assert
	// the provider was (or was not) reached.
	DocumentCalls int
	QueryCalls    int
}

var _ Provider = (*Fake)(nil)

// NewFake creates a fake provider emitting vectors of the given dimension.
func NewFake(dim int) *Fake {
	return &Fake{dim: dim}
}

// Fail makes every subsequent call return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// EmbedDocuments returns one deterministic vector per input text.
func (f *Fake) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.DocumentCalls++
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
	}
	return vectors, nil
}

// EmbedQuery returns a deterministic vector for the query text.
func (f *Fake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.QueryCalls++
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.vector(text), nil
}

// Dimension returns the fake's vector dimension.
func (f *Fake) Dimension() int {
	return f.dim
}

func (f *Fake) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(rng.Float64()*2 - 1)
	}
	return v
}
