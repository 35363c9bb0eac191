// Lessond is the lesson retrieval and grounded-chat daemon.
//
// It keeps a per-lesson semantic chunk index and answers questions about a
// lesson strictly from that lesson's indexed content, streaming answers
// over HTTP.
//
// Configuration is loaded from a YAML file and environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	lessond
//
//	# Configure via environment
//	SERVER_PORT=8090 EMBEDDING_API_KEY=sk-... lessond
//
//	# Point at an explicit config file
//	lessond -config /etc/lessond/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/brightpath/lessond/internal/chat"
	"github.com/brightpath/lessond/internal/chunker"
	"github.com/brightpath/lessond/internal/config"
	"github.com/brightpath/lessond/internal/embeddings"
	"github.com/brightpath/lessond/internal/httpapi"
	"github.com/brightpath/lessond/internal/indexer"
	"github.com/brightpath/lessond/internal/logging"
	"github.com/brightpath/lessond/internal/retrieval"
	"github.com/brightpath/lessond/internal/store"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  lessond           Start the lessond daemon\n")
			fmt.Fprintf(os.Stderr, "  lessond version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("lessond\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the lessond daemon and blocks until ctx is cancelled.
//
//  1. Loads .env and configuration
//  2. Initializes the logger
//  3. Opens the chunk and document stores
//  4. Creates the embedding and generation clients
//  5. Wires the indexer, retrieval, and chat services
//  6. Starts the HTTP server
//  7. Drains background rebuilds and shuts down gracefully
func run(ctx context.Context, configPath string) error {
	// Best effort: a missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting lessond",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	docs, chunks, closeStore, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("opening stores: %w", err)
	}
	defer closeStore()

	provider, err := embeddings.NewService(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	model, err := chat.NewModel(cfg.Generation)
	if err != nil {
		return fmt.Errorf("creating generation model: %w", err)
	}

	ch, err := chunker.New(cfg.Index.ChunkerConfig())
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	metrics := indexer.NewMetrics(prometheus.DefaultRegisterer)
	idx := indexer.NewService(ctx, docs, chunks, provider, ch, logger.Named("indexer"), metrics)
	search := retrieval.NewService(provider, chunks, cfg.Retrieval.TopK, logger.Named("retrieval"))
	orchestrator := chat.NewOrchestrator(search, docs, model, cfg.Retrieval.TopK, logger.Named("chat"))

	srv, err := httpapi.NewServer(docs, chunks, idx, search, orchestrator, logger.Named("http"), &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// Scheduled rebuilds were cancelled with ctx; wait for them to wind
	// down before closing the store.
	idx.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}

// openStores opens the configured index backend. The memory driver is for
// development and tests; sqlite is the durable default.
func openStores(cfg *config.Config) (store.DocumentStore, store.ChunkStore, func(), error) {
	switch cfg.Index.Driver {
	case "memory":
		mem := store.NewMemory()
		return mem, mem, func() {}, nil
	case "sqlite":
		db, err := store.NewSQLite(cfg.Index.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, db, func() { _ = db.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown index driver %q", cfg.Index.Driver)
	}
}
