// Package chunker splits normalized lesson text into overlapping,
// ordered chunks for embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults chosen for short-form Q&A grounding: ~250 words per chunk with
// 10% overlap preserves context across chunk boundaries without inflating
// the chunk count.
const (
	DefaultSize    = 250
	DefaultOverlap = 25
)

// ErrInvalidConfig indicates an unusable chunking configuration.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Config holds chunking parameters, both measured in words.
type Config struct {
	// Size is the maximum number of words per chunk.
	Size int `koanf:"chunk_size"`

	// Overlap is the number of words shared between consecutive chunks.
	Overlap int `koanf:"chunk_overlap"`
}

// NewDefaultConfig returns the default chunking configuration.
func NewDefaultConfig() Config {
	return Config{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate checks the configuration. Overlap must be strictly smaller than
// Size or the window would never advance.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.Overlap, c.Size)
	}
	return nil
}

// Chunker splits text into word-window chunks.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker from cfg. Zero values fall back to defaults before
// validation.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size == 0 && cfg.Overlap == 0 {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// Split chunks text into ordered word windows. Each chunk holds up to
// c.size words and the window start advances by size-overlap, so the last
// overlap words of a chunk reappear at the head of the next one. Empty
// input yields no chunks; text shorter than one window yields exactly one
// chunk. The operation is deterministic and never fails.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	step := c.size - c.overlap
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.TrimSpace(strings.Join(words[start:end], " "))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Size returns the configured words-per-chunk window.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }
