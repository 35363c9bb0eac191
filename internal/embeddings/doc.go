// Package embeddings generates vector embeddings for lesson chunks and
// queries via an OpenAI-compatible embedding API.
//
// The provider is a thin, fallible adapter: it performs no retries and no
// backoff. Retry policy, if any, belongs to the caller. Failures surface
// as ErrEmbeddingFailed so callers can distinguish provider outages from
// their own validation errors.
package embeddings
