// Package embedding provides text embedding providers and query caching.
package embedding

import (
	"context"
	"errors"
)

// ErrProvider marks failures of the embedding provider (network, auth, quota, bad response).
var ErrProvider = errors.New("embedding provider error")

// Embedder produces vector embeddings for text. EmbedBatch must preserve input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector size, or 0 when it is not known before the first call.
	Dimensions() int
	Close() error
}
