package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores returns every implementation under its display name so the whole
// contract suite runs against each backend.
func stores(t *testing.T) map[string]interface {
	DocumentStore
	ChunkStore
} {
	t.Helper()

	sqlite, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]interface {
		DocumentStore
		ChunkStore
	}{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func testChunks(docID string, texts ...string) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			DocumentID: docID,
			Index:      i,
			Text:       text,
			Embedding:  []float32{float32(i), 1, 2},
		}
	}
	return chunks
}

func TestDocumentStore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.GetTitle(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			doc := Document{
				ID:          "lesson-1",
				Title:       "Clean Water",
				Description: "Why clean water matters",
				Content:     "<p>Water is life.</p>",
				Published:   true,
				UpdatedAt:   time.Now().UTC(),
			}
			require.NoError(t, s.Put(ctx, doc))

			got, err := s.Get(ctx, "lesson-1")
			require.NoError(t, err)
			assert.Equal(t, doc.Title, got.Title)
			assert.Equal(t, doc.Content, got.Content)
			assert.True(t, got.Published)

			title, err := s.GetTitle(ctx, "lesson-1")
			require.NoError(t, err)
			assert.Equal(t, "Clean Water", title)

			// Upsert replaces in place.
			doc.Title = "Clean Water Revised"
			require.NoError(t, s.Put(ctx, doc))
			title, err = s.GetTitle(ctx, "lesson-1")
			require.NoError(t, err)
			assert.Equal(t, "Clean Water Revised", title)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"lesson-1"}, ids)

			require.NoError(t, s.Delete(ctx, "lesson-1"))
			_, err = s.Get(ctx, "lesson-1")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting again is a no-op.
			require.NoError(t, s.Delete(ctx, "lesson-1"))
		})
	}
}

func TestChunkStoreReplaceAndGetAll(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// No index yet: empty set, no error.
			chunks, err := s.GetAll(ctx, "doc")
			require.NoError(t, err)
			assert.Empty(t, chunks)

			require.NoError(t, s.Replace(ctx, "doc", 1, testChunks("doc", "alpha", "beta", "gamma")))

			chunks, err = s.GetAll(ctx, "doc")
			require.NoError(t, err)
			require.Len(t, chunks, 3)
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, "doc", c.DocumentID)
				assert.NotEmpty(t, c.Embedding)
				assert.False(t, c.CreatedAt.IsZero())
			}
			assert.Equal(t, []float32{1, 1, 2}, chunks[1].Embedding)

			v, err := s.Version(ctx, "doc")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), v)

			// A higher version fully replaces the set.
			require.NoError(t, s.Replace(ctx, "doc", 2, testChunks("doc", "delta")))
			chunks, err = s.GetAll(ctx, "doc")
			require.NoError(t, err)
			require.Len(t, chunks, 1)
			assert.Equal(t, "delta", chunks[0].Text)
		})
	}
}

func TestChunkStoreStaleWriteDiscarded(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Replace(ctx, "doc", 2, testChunks("doc", "current")))

			// A rebuild that finished late with a lower version must not apply.
			err := s.Replace(ctx, "doc", 1, testChunks("doc", "stale"))
			assert.ErrorIs(t, err, ErrStaleVersion)

			// Equal version is also stale.
			err = s.Replace(ctx, "doc", 2, testChunks("doc", "stale"))
			assert.ErrorIs(t, err, ErrStaleVersion)

			chunks, err := s.GetAll(ctx, "doc")
			require.NoError(t, err)
			require.Len(t, chunks, 1)
			assert.Equal(t, "current", chunks[0].Text)

			v, err := s.Version(ctx, "doc")
			require.NoError(t, err)
			assert.Equal(t, uint64(2), v)
		})
	}
}

func TestChunkStorePurge(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Replace(ctx, "doc", 1, testChunks("doc", "a", "b")))
			require.NoError(t, s.Purge(ctx, "doc", 2))

			chunks, err := s.GetAll(ctx, "doc")
			require.NoError(t, err)
			assert.Empty(t, chunks)

			// The watermark survives the purge, so an in-flight rebuild
			// started before the purge cannot resurrect the index.
			err = s.Replace(ctx, "doc", 2, testChunks("doc", "zombie"))
			assert.ErrorIs(t, err, ErrStaleVersion)

			// A rebuild scheduled after the purge applies normally.
			require.NoError(t, s.Replace(ctx, "doc", 3, testChunks("doc", "fresh")))
			chunks, err = s.GetAll(ctx, "doc")
			require.NoError(t, err)
			require.Len(t, chunks, 1)
			assert.Equal(t, "fresh", chunks[0].Text)
		})
	}
}

func TestChunkStoreRejectsInvalidChunkSets(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			gap := testChunks("doc", "a", "b")
			gap[1].Index = 2
			assert.ErrorIs(t, s.Replace(ctx, "doc", 1, gap), ErrInvalidChunks)

			empty := testChunks("doc", "a")
			empty[0].Text = ""
			assert.ErrorIs(t, s.Replace(ctx, "doc", 1, empty), ErrInvalidChunks)

			foreign := testChunks("other", "a")
			assert.ErrorIs(t, s.Replace(ctx, "doc", 1, foreign), ErrInvalidChunks)
		})
	}
}

func TestChunkStoreIndependentDocuments(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Replace(ctx, "a", 1, testChunks("a", "doc a")))
			require.NoError(t, s.Replace(ctx, "b", 5, testChunks("b", "doc b")))
			require.NoError(t, s.Purge(ctx, "a", 2))

			chunks, err := s.GetAll(ctx, "b")
			require.NoError(t, err)
			require.Len(t, chunks, 1)
			assert.Equal(t, "doc b", chunks[0].Text)
		})
	}
}

func TestSQLiteEmbeddingRoundTrip(t *testing.T) {
	s, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	embedding := []float32{0.5, -1.25, 3.75e-3, 0}
	chunks := []Chunk{{Index: 0, Text: "hello", Embedding: embedding}}
	require.NoError(t, s.Replace(ctx, "doc", 1, chunks))

	got, err := s.GetAll(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, embedding, got[0].Embedding)
}
