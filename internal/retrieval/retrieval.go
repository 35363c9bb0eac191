// Package retrieval answers similarity-search queries against a single
// document's chunk index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/lessond/internal/embeddings"
	"github.com/brightpath/lessond/internal/similarity"
	"github.com/brightpath/lessond/internal/store"
)

// ErrEmptyQuery indicates a blank query string.
var ErrEmptyQuery = errors.New("query text cannot be empty")

// Result is one ranked chunk returned to the caller.
type Result struct {
	Text       string  `json:"text"`
	ChunkIndex int     `json:"chunkIndex"`
	Score      float32 `json:"score"`
}

// Service runs query embedding and chunk ranking.
type Service struct {
	provider embeddings.Provider
	chunks   store.ChunkStore
	topK     int
	logger   *zap.Logger
}

// NewService creates a retrieval service. topK <= 0 falls back to
// similarity.DefaultLimit.
func NewService(provider embeddings.Provider, chunks store.ChunkStore, topK int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = similarity.DefaultLimit
	}
	return &Service{
		provider: provider,
		chunks:   chunks,
		topK:     topK,
		logger:   logger,
	}
}

// Search embeds the query and returns up to limit chunks of the document
// ranked by descending cosine similarity, ties broken by ascending chunk
// index. A document without an index yields store.ErrNotFound. Provider
// failures propagate unchanged; translating them into user-facing messages
// is the HTTP layer's job.
func (s *Service) Search(ctx context.Context, docID, query string, limit int) ([]Result, error) {
	if docID == "" {
		return nil, fmt.Errorf("%w: document id required", ErrEmptyQuery)
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.topK
	}

	start := time.Now()

	queryVec, err := s.provider.EmbedQuery(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	chunks, err := s.chunks.GetAll(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no index for document %s", store.ErrNotFound, docID)
	}

	ranked, err := similarity.Rank(queryVec, chunks, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking chunks: %w", err)
	}

	results := make([]Result, len(ranked))
	for i, r := range ranked {
		results[i] = Result{
			Text:       r.Chunk.Text,
			ChunkIndex: r.Chunk.Index,
			Score:      r.Score,
		}
	}

	s.logger.Debug("search completed",
		zap.String("document_id", docID),
		zap.Int("candidates", len(chunks)),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}
