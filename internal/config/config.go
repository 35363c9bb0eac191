// Package config provides configuration loading for lessond.
package config

import (
	"fmt"
	"time"

	"github.com/brightpath/lessond/internal/chat"
	"github.com/brightpath/lessond/internal/chunker"
	"github.com/brightpath/lessond/internal/embeddings"
)

// Config is the root configuration for the daemon.
type Config struct {
	Server     ServerConfig      `koanf:"server"`
	Embedding  embeddings.Config `koanf:"embedding"`
	Generation chat.ModelConfig  `koanf:"generation"`
	Index      IndexConfig       `koanf:"index"`
	Retrieval  RetrievalConfig   `koanf:"retrieval"`
	Logging    LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// IndexConfig holds chunking and storage settings.
type IndexConfig struct {
	// Driver selects the chunk index backend: "sqlite" or "memory".
	Driver string `koanf:"driver"`

	// DataDir is where the sqlite backend keeps its database.
	DataDir string `koanf:"data_dir"`

	// ChunkSize and ChunkOverlap are measured in words.
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// ChunkerConfig converts the index settings into a chunker configuration.
func (c IndexConfig) ChunkerConfig() chunker.Config {
	return chunker.Config{Size: c.ChunkSize, Overlap: c.ChunkOverlap}
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	// TopK is the default number of chunks returned per search and placed
	// into the chat grounding context.
	TopK int `koanf:"top_k"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// applyDefaults fills in zero values with production-ready defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8088
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = cfg.Embedding.APIKey
	}
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = "sqlite"
	}
	if cfg.Index.DataDir == "" {
		cfg.Index.DataDir = defaultDataDir()
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = chunker.DefaultSize
	}
	if cfg.Index.ChunkOverlap == 0 && cfg.Index.ChunkSize == chunker.DefaultSize {
		cfg.Index.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got %d", c.Server.Port)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if c.Index.Driver != "sqlite" && c.Index.Driver != "memory" {
		return fmt.Errorf("index driver must be \"sqlite\" or \"memory\", got %q", c.Index.Driver)
	}
	if c.Index.Driver == "sqlite" && c.Index.DataDir == "" {
		return fmt.Errorf("index data_dir required for sqlite driver")
	}
	if err := c.Index.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}
	return nil
}
