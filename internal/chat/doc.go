// Package chat turns a ranked retrieval result set into a grounded,
// streamed answer.
//
// Each turn is single-flight: one query in, one streamed answer out. The
// orchestrator reads the chunk index and calls the generation model but
// mutates no persisted state; conversation history, if kept at all, is the
// surrounding UI layer's concern. Retrieval failures abort a turn before
// the generation call is made. The caller's context cancellation propagates
// to both the retrieval and generation stages, so a disconnected client
// stops token generation promptly.
package chat
