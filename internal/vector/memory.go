// Package vector provides an immutable in-memory vector store with brute-force cosine search.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/pdfchat/internal/embedding"
	"github.com/hyperjump/pdfchat/internal/models"
)

var (
	// ErrEmbeddingFailure is returned when the embedder fails or returns unusable vectors.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrDimensionMismatch is returned when a query vector does not match the store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Result is a single search hit: the chunk, its insertion index and cosine similarity.
type Result struct {
	Chunk models.Chunk
	Index int
	Score float64
}

// Store holds chunks and their embeddings in insertion order. It is written once
// by Build or NewStore and read-only afterwards, so concurrent searches need no locking.
type Store struct {
	dimensions int
	chunks     []models.Chunk
	vectors    [][]float32
	norms      []float64
}

// Build embeds every chunk in a single batch call and returns the populated store.
// It fails with ErrEmbeddingFailure if the embedder errors or returns the wrong
// number of vectors or vectors of inconsistent dimension.
func Build(ctx context.Context, chunks []models.Chunk, embedder embedding.Embedder) (*Store, error) {
	if len(chunks) == 0 {
		return &Store{}, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	return NewStore(chunks, vectors)
}

// NewStore creates a store from chunks and their precomputed vectors.
// Both slices are copied; vectors[i] belongs to chunks[i].
func NewStore(chunks []models.Chunk, vectors [][]float32) (*Store, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingFailure, len(vectors), len(chunks))
	}
	s := &Store{
		chunks:  make([]models.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
		norms:   make([]float64, len(vectors)),
	}
	copy(s.chunks, chunks)
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector for chunk %d", ErrEmbeddingFailure, i)
		}
		if i == 0 {
			s.dimensions = len(v)
		} else if len(v) != s.dimensions {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingFailure, i, len(v), s.dimensions)
		}
		vec := make([]float32, len(v))
		copy(vec, v)
		s.vectors[i] = vec
		s.norms[i] = L2Norm(vec)
	}
	return s, nil
}

// Search returns up to k chunks ranked by descending cosine similarity to query.
// Ties keep insertion order. k <= 0 or an empty store yields no results.
func (s *Store) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 || len(s.chunks) == 0 {
		return []Result{}, nil
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), s.dimensions)
	}
	queryNorm := L2Norm(query)
	results := make([]Result, len(s.vectors))
	for i, vec := range s.vectors {
		results[i] = Result{
			Chunk: s.chunks[i],
			Index: i,
			Score: cosine(InnerProduct(query, vec), queryNorm, s.norms[i]),
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	return len(s.chunks)
}

// Dimensions returns the shared vector dimension, or 0 for an empty store.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Chunks returns a copy of the stored chunks in insertion order.
func (s *Store) Chunks() []models.Chunk {
	out := make([]models.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}
