package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/lessond/internal/chunker"
	"github.com/brightpath/lessond/internal/embeddings"
	"github.com/brightpath/lessond/internal/normalize"
	"github.com/brightpath/lessond/internal/store"
)

// State describes a document's index lifecycle state.
type State string

const (
	// StateUnindexed means the document has no queryable chunks: never
	// indexed, purged, or unpublished.
	StateUnindexed State = "unindexed"

	// StateIndexing means at least one rebuild is in flight.
	StateIndexing State = "indexing"

	// StateIndexed means a stable, queryable chunk set exists.
	StateIndexed State = "indexed"
)

// Service rebuilds and purges per-document chunk indexes.
type Service struct {
	docs     store.DocumentStore
	chunks   store.ChunkStore
	provider embeddings.Provider
	chunker  *chunker.Chunker
	logger   *zap.Logger
	metrics  *Metrics

	// baseCtx outlives individual requests so scheduled rebuilds are not
	// cancelled when the triggering mutation's request context ends.
	baseCtx context.Context

	mu       sync.Mutex
	versions map[string]uint64 // highest version handed out per document
	inflight map[string]int    // running rebuilds per document
	indexed  map[string]bool   // last known stable-index presence

	wg sync.WaitGroup
}

// NewService creates an indexer. baseCtx bounds scheduled background
// rebuilds; pass the daemon's root context so shutdown cancels them.
func NewService(baseCtx context.Context, docs store.DocumentStore, chunks store.ChunkStore, provider embeddings.Provider, ch *chunker.Chunker, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		docs:     docs,
		chunks:   chunks,
		provider: provider,
		chunker:  ch,
		logger:   logger,
		metrics:  metrics,
		baseCtx:  baseCtx,
		versions: make(map[string]uint64),
		inflight: make(map[string]int),
		indexed:  make(map[string]bool),
	}
}

// State returns the lifecycle state of a document's index and the highest
// version handed out so far.
func (s *Service) State(docID string) (State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[docID] > 0 {
		return StateIndexing, s.versions[docID]
	}
	if s.indexed[docID] {
		return StateIndexed, s.versions[docID]
	}
	return StateUnindexed, s.versions[docID]
}

// Schedule triggers a fire-and-forget rebuild for a document. It returns
// immediately; the rebuild runs on a background goroutine bounded by the
// service's base context. Until it completes, queries see the previous
// index version (or none). Failures and stale completions are logged, the
// prior stable index is never partially overwritten.
func (s *Service) Schedule(docID string) {
	version := s.reserveVersion(docID)
	s.beginRebuild(docID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.endRebuild(docID)

		if err := s.rebuild(s.baseCtx, docID, version); err != nil {
			switch {
			case errors.Is(err, store.ErrStaleVersion):
				s.logger.Info("stale rebuild discarded",
					zap.String("document_id", docID),
					zap.Uint64("version", version),
				)
			default:
				s.logger.Error("index rebuild failed",
					zap.String("document_id", docID),
					zap.Uint64("version", version),
					zap.Error(err),
				)
			}
		}
	}()
}

// Reindex rebuilds a document's index synchronously. On any failure the
// previous stable index is left untouched and the error is returned.
func (s *Service) Reindex(ctx context.Context, docID string) error {
	version := s.reserveVersion(docID)
	s.beginRebuild(docID)
	defer s.endRebuild(docID)
	return s.rebuild(ctx, docID, version)
}

// Purge removes a document's chunks wholesale. The purge advances the
// version watermark so rebuilds still in flight cannot resurrect the index.
func (s *Service) Purge(ctx context.Context, docID string) error {
	version := s.reserveVersion(docID)
	if err := s.chunks.Purge(ctx, docID, version); err != nil {
		return fmt.Errorf("purging index for %s: %w", docID, err)
	}

	s.mu.Lock()
	s.indexed[docID] = false
	s.mu.Unlock()

	s.metrics.observePurge()
	s.logger.Info("index purged",
		zap.String("document_id", docID),
		zap.Uint64("version", version),
	)
	return nil
}

// BatchResult reports the outcome of a ReindexAll pass.
type BatchResult struct {
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
}

// ReindexAll rebuilds every known document sequentially. Per-document
// failures are collected rather than aborting the pass.
func (s *Service) ReindexAll(ctx context.Context) (*BatchResult, error) {
	ids, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	result := &BatchResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.Reindex(ctx, id); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("document %s: %v", id, err))
			continue
		}
		result.Processed++
	}
	return result, nil
}

// Wait blocks until all scheduled rebuilds have finished. Used during
// shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// rebuild runs one full normalization+chunking+embedding pass over the
// document's content as of now, then applies a single versioned swap.
func (s *Service) rebuild(ctx context.Context, docID string, version uint64) error {
	start := time.Now()

	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		s.metrics.observeRebuild(outcomeFailed, 0, time.Since(start))
		return fmt.Errorf("loading document: %w", err)
	}

	// Unpublished content must not be queryable; treat the rebuild trigger
	// as a purge.
	if !doc.Published {
		if err := s.chunks.Purge(ctx, docID, version); err != nil {
			return fmt.Errorf("purging unpublished document %s: %w", docID, err)
		}
		s.mu.Lock()
		s.indexed[docID] = false
		s.mu.Unlock()
		s.metrics.observePurge()
		return nil
	}

	plain := normalize.Text(doc.Title + "\n\n" + doc.Description + "\n\n" + doc.Content)
	texts := s.chunker.Split(plain)

	chunks := make([]store.Chunk, 0, len(texts))
	for i, text := range texts {
		// One embedding call per chunk, strictly sequential. Rebuild
		// wall-clock time is linear in chunk count.
		vectors, err := s.provider.EmbedDocuments(ctx, []string{text})
		if err != nil {
			s.metrics.observeRebuild(outcomeFailed, 0, time.Since(start))
			return fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		chunks = append(chunks, store.Chunk{
			DocumentID: docID,
			Index:      i,
			Text:       text,
			Embedding:  vectors[0],
		})
	}

	if err := s.chunks.Replace(ctx, docID, version, chunks); err != nil {
		if errors.Is(err, store.ErrStaleVersion) {
			s.metrics.observeRebuild(outcomeStale, 0, time.Since(start))
		} else {
			s.metrics.observeRebuild(outcomeFailed, 0, time.Since(start))
		}
		return fmt.Errorf("swapping chunk set: %w", err)
	}

	s.mu.Lock()
	s.indexed[docID] = len(chunks) > 0
	s.mu.Unlock()

	s.metrics.observeRebuild(outcomeSuccess, len(chunks), time.Since(start))
	s.logger.Info("index rebuilt",
		zap.String("document_id", docID),
		zap.Uint64("version", version),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// reserveVersion hands out the next monotonic version for a document,
// seeding the counter from the store's watermark on first use.
func (s *Service) reserveVersion(docID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seeded := s.versions[docID]; !seeded {
		stored, err := s.chunks.Version(context.Background(), docID)
		if err != nil {
			s.logger.Warn("seeding version counter failed",
				zap.String("document_id", docID),
				zap.Error(err),
			)
		}
		s.versions[docID] = stored
		// A purge also advances the watermark, so a positive version does
		// not imply a queryable index. Seed from chunk presence.
		if stored > 0 {
			chunks, err := s.chunks.GetAll(context.Background(), docID)
			if err != nil {
				s.logger.Warn("seeding index state failed",
					zap.String("document_id", docID),
					zap.Error(err),
				)
			}
			s.indexed[docID] = len(chunks) > 0
		}
	}

	s.versions[docID]++
	return s.versions[docID]
}

func (s *Service) beginRebuild(docID string) {
	s.mu.Lock()
	s.inflight[docID]++
	s.mu.Unlock()
}

func (s *Service) endRebuild(docID string) {
	s.mu.Lock()
	s.inflight[docID]--
	s.mu.Unlock()
}
