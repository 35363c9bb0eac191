package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/lessond/internal/chunker"
	"github.com/brightpath/lessond/internal/embeddings"
	"github.com/brightpath/lessond/internal/store"
)

func newTestService(t *testing.T, mem *store.Memory, provider embeddings.Provider) *Service {
	t.Helper()
	ch, err := chunker.New(chunker.Config{Size: 5, Overlap: 1})
	require.NoError(t, err)
	return NewService(context.Background(), mem, mem, provider, ch, zap.NewNop(), nil)
}

func putDoc(t *testing.T, mem *store.Memory, id, content string, published bool) {
	t.Helper()
	require.NoError(t, mem.Put(context.Background(), store.Document{
		ID:        id,
		Title:     "Title",
		Content:   content,
		Published: published,
	}))
}

func TestReindexBuildsChunks(t *testing.T) {
	mem := store.NewMemory()
	fake := embeddings.NewFake(8)
	svc := newTestService(t, mem, fake)
	ctx := context.Background()

	// 12 content words; title "Title" adds one more word up front.
	putDoc(t, mem, "doc", strings.Repeat("word ", 12), true)
	require.NoError(t, svc.Reindex(ctx, "doc"))

	chunks, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Len(t, c.Embedding, 8)
		assert.NotEmpty(t, c.Text)
	}

	state, version := svc.State("doc")
	assert.Equal(t, StateIndexed, state)
	assert.Equal(t, uint64(1), version)
}

func TestReindexUnknownDocument(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(t, mem, embeddings.NewFake(8))

	err := svc.Reindex(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReindexIdempotentChunkSets(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(t, mem, embeddings.NewFake(8))
	ctx := context.Background()

	putDoc(t, mem, "doc", strings.Repeat("stable content here ", 10), true)

	require.NoError(t, svc.Reindex(ctx, "doc"))
	first, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)

	require.NoError(t, svc.Reindex(ctx, "doc"))
	second, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Index, second[i].Index)
		// The fake provider is deterministic, so embeddings match too.
		assert.Equal(t, first[i].Embedding, second[i].Embedding)
	}

	v, err := mem.Version(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestReindexFailureKeepsPriorIndex(t *testing.T) {
	mem := store.NewMemory()
	fake := embeddings.NewFake(8)
	svc := newTestService(t, mem, fake)
	ctx := context.Background()

	putDoc(t, mem, "doc", "original content words", true)
	require.NoError(t, svc.Reindex(ctx, "doc"))
	before, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)

	putDoc(t, mem, "doc", "edited content words", true)
	providerErr := errors.New("rate limited")
	fake.Fail(providerErr)

	err = svc.Reindex(ctx, "doc")
	assert.ErrorIs(t, err, providerErr)

	after, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReindexUnpublishedPurges(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(t, mem, embeddings.NewFake(8))
	ctx := context.Background()

	putDoc(t, mem, "doc", "some lesson content", true)
	require.NoError(t, svc.Reindex(ctx, "doc"))

	putDoc(t, mem, "doc", "some lesson content", false)
	require.NoError(t, svc.Reindex(ctx, "doc"))

	chunks, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	state, _ := svc.State("doc")
	assert.Equal(t, StateUnindexed, state)
}

func TestPurge(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(t, mem, embeddings.NewFake(8))
	ctx := context.Background()

	putDoc(t, mem, "doc", "content to purge", true)
	require.NoError(t, svc.Reindex(ctx, "doc"))
	require.NoError(t, svc.Purge(ctx, "doc"))

	chunks, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	state, _ := svc.State("doc")
	assert.Equal(t, StateUnindexed, state)
}

func TestScheduleRunsInBackground(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(t, mem, embeddings.NewFake(8))
	ctx := context.Background()

	putDoc(t, mem, "doc", "asynchronously indexed content", true)
	svc.Schedule("doc")
	svc.Wait()

	chunks, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

// blockingProvider lets a test hold one rebuild open while another
// completes, to drive the stale-write race deterministically.
type blockingProvider struct {
	*embeddings.Fake
	mu      sync.Mutex
	gates   map[string]chan struct{}
	pattern string
}

func (p *blockingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	gate := p.gates[p.pattern]
	p.mu.Unlock()
	if gate != nil && len(texts) == 1 && strings.Contains(texts[0], p.pattern) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.Fake.EmbedDocuments(ctx, texts)
}

func TestConcurrentRebuildLaterVersionWins(t *testing.T) {
	mem := store.NewMemory()
	gate := make(chan struct{})
	provider := &blockingProvider{
		Fake:    embeddings.NewFake(8),
		gates:   map[string]chan struct{}{"slow": {}},
		pattern: "slow",
	}
	provider.gates["slow"] = gate
	svc := newTestService(t, mem, provider)
	ctx := context.Background()

	// Rebuild 1 embeds "slow" content and stalls inside the provider.
	putDoc(t, mem, "doc", "slow version of the content", true)
	var wg sync.WaitGroup
	wg.Add(1)
	errCh := make(chan error, 1)
	go func() {
		defer wg.Done()
		errCh <- svc.Reindex(ctx, "doc")
	}()

	// Give rebuild 1 time to reserve version 1 and block on the gate.
	require.Eventually(t, func() bool {
		state, v := svc.State("doc")
		return state == StateIndexing && v >= 1
	}, time.Second, time.Millisecond)

	// Rebuild 2 starts later, gets version 2, and finishes first.
	putDoc(t, mem, "doc", "fresh version of the content", true)
	require.NoError(t, svc.Reindex(ctx, "doc"))

	// Unblock rebuild 1; its completion must be discarded as stale.
	close(gate)
	wg.Wait()
	assert.ErrorIs(t, <-errCh, store.ErrStaleVersion)

	chunks, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	joined := ""
	for _, c := range chunks {
		joined += c.Text + " "
	}
	assert.Contains(t, joined, "fresh")
	assert.NotContains(t, joined, "slow")

	v, err := mem.Version(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestPurgeBlocksInflightRebuild(t *testing.T) {
	mem := store.NewMemory()
	gate := make(chan struct{})
	provider := &blockingProvider{
		Fake:    embeddings.NewFake(8),
		gates:   map[string]chan struct{}{"slow": gate},
		pattern: "slow",
	}
	svc := newTestService(t, mem, provider)
	ctx := context.Background()

	putDoc(t, mem, "doc", "slow content being deleted", true)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Reindex(ctx, "doc")
	}()
	require.Eventually(t, func() bool {
		state, _ := svc.State("doc")
		return state == StateIndexing
	}, time.Second, time.Millisecond)

	// Delete lands while the rebuild is embedding.
	require.NoError(t, svc.Purge(ctx, "doc"))

	close(gate)
	assert.ErrorIs(t, <-errCh, store.ErrStaleVersion)

	chunks, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestReindexAll(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(t, mem, embeddings.NewFake(8))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		putDoc(t, mem, fmt.Sprintf("doc-%d", i), "published lesson content", true)
	}

	result, err := svc.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Empty(t, result.Errors)

	for i := 0; i < 3; i++ {
		chunks, err := mem.GetAll(ctx, fmt.Sprintf("doc-%d", i))
		require.NoError(t, err)
		assert.NotEmpty(t, chunks)
	}
}

func TestPurgedIndexStaysUnindexedAfterRestart(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	// A previous process indexed then purged the document; only the
	// version watermark survives.
	require.NoError(t, mem.Replace(ctx, "doc", 2, []store.Chunk{
		{Index: 0, Text: "old", Embedding: []float32{1}},
	}))
	require.NoError(t, mem.Purge(ctx, "doc", 3))

	svc := newTestService(t, mem, embeddings.NewFake(8))

	// A rebuild trigger for the since-deleted document fails; the failed
	// attempt must not resurrect the purged index's reported state.
	svc.Schedule("doc")
	svc.Wait()

	state, _ := svc.State("doc")
	assert.Equal(t, StateUnindexed, state)

	chunks, err := mem.GetAll(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestVersionCounterSeededFromStore(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	// A previous process left the index at version 7.
	require.NoError(t, mem.Replace(ctx, "doc", 7, []store.Chunk{
		{Index: 0, Text: "old", Embedding: []float32{1}},
	}))

	svc := newTestService(t, mem, embeddings.NewFake(8))
	putDoc(t, mem, "doc", "new content after restart", true)
	require.NoError(t, svc.Reindex(ctx, "doc"))

	v, err := mem.Version(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), v)
}
