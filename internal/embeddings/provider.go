package embeddings

import "context"

// Provider generates fixed-dimension vector embeddings from text.
//
// Every call against one configured model returns vectors of the same
// dimension. Implementations are external and fallible; callers own retry
// and timeout policy.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts, one vector
	// per input in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension of the configured model.
	Dimension() int
}
