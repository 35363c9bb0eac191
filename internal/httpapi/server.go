// Package httpapi provides the HTTP API for lessond.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/brightpath/lessond/internal/chat"
	"github.com/brightpath/lessond/internal/indexer"
	"github.com/brightpath/lessond/internal/retrieval"
	"github.com/brightpath/lessond/internal/store"
)

// Server exposes the lesson index and chat pipeline over HTTP.
type Server struct {
	echo    *echo.Echo
	logger  *zap.Logger
	config  *Config
	docs    store.DocumentStore
	chunks  store.ChunkStore
	indexer *indexer.Service
	search  *retrieval.Service
	chat    *chat.Orchestrator
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(docs store.DocumentStore, chunks store.ChunkStore, idx *indexer.Service, search *retrieval.Service, orchestrator *chat.Orchestrator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if docs == nil || chunks == nil {
		return nil, fmt.Errorf("document and chunk stores are required")
	}
	if idx == nil || search == nil || orchestrator == nil {
		return nil, fmt.Errorf("indexer, retrieval, and chat services are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8088,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		logger:  logger,
		config:  cfg,
		docs:    docs,
		chunks:  chunks,
		indexer: idx,
		search:  search,
		chat:    orchestrator,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.POST("/search", s.handleSearch)
	v1.GET("/documents/:id/title", s.handleTitle)
	v1.PUT("/documents/:id", s.handleUpsertDocument)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.POST("/documents/:id/reindex", s.handleReindex)
	v1.POST("/reindex", s.handleReindexAll)
	v1.GET("/documents/:id/chunks/stats", s.handleChunkStats)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
