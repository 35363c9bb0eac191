package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	published   INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS index_versions (
	document_id TEXT PRIMARY KEY,
	version     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	document_id TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	embedding   BLOB NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (document_id, idx)
);

CREATE INDEX IF NOT EXISTS chunks_by_document ON chunks (document_id);
`

// SQLite is a durable implementation of DocumentStore and ChunkStore backed
// by modernc.org/sqlite (pure Go, no cgo).
type SQLite struct {
	db   *sql.DB
	path string
}

var (
	_ DocumentStore = (*SQLite)(nil)
	_ ChunkStore    = (*SQLite)(nil)
)

// NewSQLite opens (creating if needed) the lesson index database under
// dataDir. WAL mode is enabled so index rebuilds do not block readers.
func NewSQLite(dataDir string) (*SQLite, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "lessons.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLite{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Put creates or replaces a document record.
func (s *SQLite) Put(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, description, content, published, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			content = excluded.content,
			published = excluded.published,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, doc.Description, doc.Content, doc.Published, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	return nil
}

// Get returns a document by id.
func (s *SQLite) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, content, published, updated_at
		FROM documents WHERE id = ?
	`, id)

	var doc Document
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Description, &doc.Content, &doc.Published, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return &doc, nil
}

// GetTitle returns the title of a document.
func (s *SQLite) GetTitle(ctx context.Context, id string) (string, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `SELECT title FROM documents WHERE id = ?`, id).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("querying title: %w", err)
	}
	return title, nil
}

// Delete removes a document record.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// List returns all document ids.
func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return ids, nil
}

// Replace atomically swaps the chunk set for a document. The version check,
// delete and bulk insert run in one transaction, so readers see either the
// whole old set or the whole new set.
func (s *SQLite) Replace(ctx context.Context, docID string, version uint64, chunks []Chunk) error {
	if err := validateChunks(docID, chunks); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkVersion(ctx, tx, docID, version); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	now := time.Now()
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (document_id, idx, text, embedding, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, docID, c.Index, c.Text, float32SliceToBytes(c.Embedding), createdAt); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}

	if err := setVersion(ctx, tx, docID, version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk swap: %w", err)
	}
	return nil
}

// GetAll returns the chunk set for a document ordered by chunk index.
func (s *SQLite) GetAll(ctx context.Context, docID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, idx, text, embedding, created_at
		FROM chunks WHERE document_id = ? ORDER BY idx
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Text, &blob, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// Purge removes all chunks for a document and records version as the new
// watermark.
func (s *SQLite) Purge(ctx context.Context, docID string, version uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkVersion(ctx, tx, docID, version); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("purging chunks: %w", err)
	}
	if err := setVersion(ctx, tx, docID, version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing purge: %w", err)
	}
	return nil
}

// Version returns the stored version watermark for a document.
func (s *SQLite) Version(ctx context.Context, docID string) (uint64, error) {
	var version uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT version FROM index_versions WHERE document_id = ?
	`, docID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying version: %w", err)
	}
	return version, nil
}

func checkVersion(ctx context.Context, tx *sql.Tx, docID string, version uint64) error {
	var stored uint64
	err := tx.QueryRowContext(ctx, `
		SELECT version FROM index_versions WHERE document_id = ?
	`, docID).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("querying version: %w", err)
	}
	if err == nil && version <= stored {
		return fmt.Errorf("%w: document %s version %d, stored %d", ErrStaleVersion, docID, version, stored)
	}
	return nil
}

func setVersion(ctx context.Context, tx *sql.Tx, docID string, version uint64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO index_versions (document_id, version) VALUES (?, ?)
		ON CONFLICT(document_id) DO UPDATE SET version = excluded.version
	`, docID, version); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return nil
}

// float32SliceToBytes converts an embedding to a little-endian byte blob.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a stored blob back to an embedding.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
