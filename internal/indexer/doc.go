// Package indexer owns the lifecycle of per-document chunk indexes.
//
// A rebuild regenerates a document's entire chunk set from its current
// content: normalize, chunk, embed each chunk sequentially, then apply one
// version-guarded atomic swap. Rebuilds are scheduled fire-and-forget, so
// the document mutation that triggered one returns before indexing
// completes; until the swap lands, queries see the previous index version.
// This staleness window is bounded by embedding-provider latency and is an
// explicit guarantee of the design, not an accident.
//
// Concurrent rebuilds for the same document are not locked against each
// other. Each rebuild reserves a monotonically increasing version up front
// and the store applies only version-advancing swaps, so the later-started
// rebuild wins and stale completions are discarded wholesale.
package indexer
