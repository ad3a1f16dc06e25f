// Package embedclient provides the embedding backend the embed worker
// pool calls: a pure function from a batch of chunk texts to a batch of
// vectors, modeled as an HTTP service rather than an in-process model.
package embedclient

import "context"

// Embedder generates vector embeddings for chunk text. Implementations
// must be safe for concurrent use: both embed pool workers call the same
// embedder under the active-model cell.
type Embedder interface {
	// EmbedBatch returns one vector per text, in the same order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector width this embedder produces.
	Dimensions() int

	// ModelID identifies the model, used as the embeddings entry key
	// (files/{doc_id}/embeddings/{model_id}).
	ModelID() string

	// Available reports whether the embedder can currently serve requests.
	Available(ctx context.Context) bool
}
