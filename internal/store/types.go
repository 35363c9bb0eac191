package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrStaleVersion is returned when a chunk-set write carries a version
	// at or below the currently stored version. The write is discarded and
	// the stored index is left untouched.
	ErrStaleVersion = errors.New("stale index version")

	// ErrInvalidChunks is returned when a chunk set violates the index
	// invariants (non-contiguous ordinals, empty text).
	ErrInvalidChunks = errors.New("invalid chunk set")
)

// Document is a lesson record owned by the surrounding content-management
// system. The retrieval core only reads it and reacts to mutations.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Published   bool      `json:"published"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chunk is a bounded slice of a document's plain text stored with its
// embedding for retrieval.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// DocumentStore persists lesson documents.
type DocumentStore interface {
	// Put creates or replaces a document record.
	Put(ctx context.Context, doc Document) error

	// Get returns a document by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// GetTitle returns just the title of a document, or ErrNotFound.
	GetTitle(ctx context.Context, id string) (string, error)

	// Delete removes a document record. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns all document ids.
	List(ctx context.Context) ([]string, error)
}

// ChunkStore persists per-document chunk indexes with versioned swaps.
type ChunkStore interface {
	// Replace atomically swaps the chunk set for a document. The write is
	// applied only if version is strictly greater than the stored version;
	// otherwise ErrStaleVersion is returned and the existing set is kept.
	Replace(ctx context.Context, docID string, version uint64, chunks []Chunk) error

	// GetAll returns the chunk set for a document ordered by chunk index.
	// A document with no index yields an empty set, not an error.
	GetAll(ctx context.Context, docID string) ([]Chunk, error)

	// Purge removes the chunk set wholesale and records version as the new
	// watermark so that in-flight rebuilds started before the purge cannot
	// resurrect the index. Same staleness rule as Replace.
	Purge(ctx context.Context, docID string, version uint64) error

	// Version returns the stored version watermark for a document, zero if
	// the document has never been indexed.
	Version(ctx context.Context, docID string) (uint64, error)
}

// validateChunks enforces the index invariants on a new chunk set: ordinals
// dense and contiguous from zero, text non-empty, owner consistent.
func validateChunks(docID string, chunks []Chunk) error {
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("%w: chunk ordinal %d at position %d", ErrInvalidChunks, c.Index, i)
		}
		if c.Text == "" {
			return fmt.Errorf("%w: empty text at ordinal %d", ErrInvalidChunks, i)
		}
		if c.DocumentID != "" && c.DocumentID != docID {
			return fmt.Errorf("%w: chunk at ordinal %d belongs to document %q", ErrInvalidChunks, i, c.DocumentID)
		}
	}
	return nil
}
