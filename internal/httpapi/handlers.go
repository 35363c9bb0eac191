package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/brightpath/lessond/internal/chat"
	"github.com/brightpath/lessond/internal/retrieval"
	"github.com/brightpath/lessond/internal/similarity"
	"github.com/brightpath/lessond/internal/store"
)

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	DocumentID string `json:"documentId"`
	Query      string `json:"query"`
	Limit      int    `json:"limit"`
}

// TitleResponse is the response body for GET /api/v1/documents/:id/title.
type TitleResponse struct {
	Title string `json:"title"`
}

// UpsertDocumentRequest is the request body for PUT /api/v1/documents/:id.
type UpsertDocumentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Published   bool   `json:"published"`
}

// AcceptedResponse acknowledges a mutation whose index work runs in the
// background.
type AcceptedResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"documentId"`
}

// ChunkStat describes one indexed chunk for debugging.
type ChunkStat struct {
	Index      int `json:"index"`
	TextLength int `json:"textLength"`
	WordCount  int `json:"wordCount"`
}

// ChunkStatsResponse is the response body for
// GET /api/v1/documents/:id/chunks/stats.
type ChunkStatsResponse struct {
	DocumentID string      `json:"documentId"`
	State      string      `json:"state"`
	Version    uint64      `json:"version"`
	ChunkCount int         `json:"chunkCount"`
	Chunks     []ChunkStat `json:"chunks"`
}

// handleChat streams a grounded answer as incremental text/plain. Errors
// before the first token map to JSON error responses; once streaming has
// begun the connection is simply cut, the status line cannot change.
func (s *Server) handleChat(c echo.Context) error {
	var req chat.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	w := c.Response()
	started := false
	sink := func(_ context.Context, chunk []byte) error {
		if !started {
			w.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	turn, err := s.chat.Stream(c.Request().Context(), req, sink)
	if err != nil {
		if started {
			s.logger.Warn("chat stream aborted",
				zap.String("turn_id", turn.ID),
				zap.String("stage", string(turn.Stage())),
				zap.Error(err),
			)
			return nil
		}
		return s.mapError(err)
	}

	if !started {
		// Model produced an empty answer; still a successful turn.
		w.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
		w.WriteHeader(http.StatusOK)
	}
	return nil
}

// handleSearch runs a semantic search over one document's chunk index.
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	results, err := s.search.Search(c.Request().Context(), req.DocumentID, req.Query, req.Limit)
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleTitle(c echo.Context) error {
	title, err := s.docs.GetTitle(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, TitleResponse{Title: title})
}

// handleUpsertDocument stores a document record and schedules the index
// work. The rebuild itself purges the index when the document is
// unpublished, so both cases go through Schedule.
func (s *Server) handleUpsertDocument(c echo.Context) error {
	var req UpsertDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title field is required")
	}

	id := c.Param("id")
	doc := store.Document{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Published:   req.Published,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.docs.Put(c.Request().Context(), doc); err != nil {
		return s.mapError(err)
	}

	s.indexer.Schedule(id)

	return c.JSON(http.StatusAccepted, AcceptedResponse{Status: "accepted", DocumentID: id})
}

// handleDeleteDocument removes the document record and purges its index so
// no deleted content remains retrievable.
func (s *Server) handleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	if err := s.docs.Delete(ctx, id); err != nil {
		return s.mapError(err)
	}
	if err := s.indexer.Purge(ctx, id); err != nil {
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReindex(c echo.Context) error {
	id := c.Param("id")
	if _, err := s.docs.Get(c.Request().Context(), id); err != nil {
		return s.mapError(err)
	}

	s.indexer.Schedule(id)

	return c.JSON(http.StatusAccepted, AcceptedResponse{Status: "accepted", DocumentID: id})
}

// handleReindexAll rebuilds every known document synchronously and reports
// the batch outcome. Per-document failures are collected, not fatal.
func (s *Server) handleReindexAll(c echo.Context) error {
	result, err := s.indexer.ReindexAll(c.Request().Context())
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// handleChunkStats reports the index shape of one document, a debugging
// aid for chunking configuration.
func (s *Server) handleChunkStats(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	if _, err := s.docs.Get(ctx, id); err != nil {
		return s.mapError(err)
	}

	chunks, err := s.chunks.GetAll(ctx, id)
	if err != nil {
		return s.mapError(err)
	}

	state, version := s.indexer.State(id)
	stats := make([]ChunkStat, 0, len(chunks))
	for _, ch := range chunks {
		stats = append(stats, ChunkStat{
			Index:      ch.Index,
			TextLength: len(ch.Text),
			WordCount:  len(strings.Fields(ch.Text)),
		})
	}

	return c.JSON(http.StatusOK, ChunkStatsResponse{
		DocumentID: id,
		State:      string(state),
		Version:    version,
		ChunkCount: len(chunks),
		Chunks:     stats,
	})
}

// mapError translates pipeline errors into HTTP responses. Validation
// details are safe to echo back; anything else gets a generic message so
// provider internals never reach clients.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, chat.ErrInvalidTurn), errors.Is(err, retrieval.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.Is(err, similarity.ErrDimensionMismatch):
		// The stored embeddings no longer match the configured model.
		s.logger.Error("embedding dimension mismatch, rebuild the document index with the configured embedding model",
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
