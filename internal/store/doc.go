// Package store persists lesson documents and their chunk indexes.
//
// The chunk index is rebuilt wholesale per document. Replace performs a
// version-guarded atomic swap: a reader never observes a mixture of an old
// chunk set and a partially written new one, and a rebuild completing with
// a version at or below the stored version is discarded as a stale write.
//
// Two implementations are provided: Memory for tests and single-process
// setups, and SQLite (modernc.org/sqlite, pure Go) for durable storage.
package store
