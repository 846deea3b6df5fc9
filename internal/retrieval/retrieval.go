// Package retrieval selects the chunks of an indexed document that best match a query
// and assembles them into a context block for prompting.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfchat/internal/embedding"
	"github.com/hyperjump/pdfchat/internal/models"
	"github.com/hyperjump/pdfchat/internal/registry"
	"github.com/hyperjump/pdfchat/internal/vector"
)

// ContextSeparator joins chunk texts in the assembled context.
const ContextSeparator = "\n\n"

// Service retrieves ranked chunks from registered documents. It never mutates a store
// and holds no lock of its own, so queries on different documents run independently.
type Service struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a retrieval service over reg.
func NewService(reg *registry.Registry, opts ...Option) *Service {
	s := &Service{registry: reg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve embeds query and returns the top k chunks of handle's store, best first.
// Unknown handles fail with registry.ErrNotFound. k <= 0 or an empty store yields
// no results without calling the embedder.
func (s *Service) Retrieve(ctx context.Context, handle, query string, k int, embedder embedding.Embedder) ([]*models.ScoredChunk, error) {
	entry, err := s.registry.Lookup(handle)
	if err != nil {
		return nil, err
	}
	if k <= 0 || entry.Store.Len() == 0 {
		return []*models.ScoredChunk{}, nil
	}

	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", vector.ErrEmbeddingFailure, err)
	}
	results, err := entry.Store.Search(queryVec, k)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ScoredChunk, len(results))
	for i, r := range results {
		out[i] = &models.ScoredChunk{Chunk: r.Chunk, Index: r.Index, Score: r.Score}
	}
	if s.logger != nil {
		s.logger.Debug("retrieved chunks",
			zap.String("doc_id", handle),
			zap.Int("k", k),
			zap.Int("results", len(out)))
	}
	return out, nil
}

// RetrieveContext is Retrieve followed by JoinContext.
func (s *Service) RetrieveContext(ctx context.Context, handle, query string, k int, embedder embedding.Embedder) (string, error) {
	results, err := s.Retrieve(ctx, handle, query, k, embedder)
	if err != nil {
		return "", err
	}
	return JoinContext(results), nil
}

// JoinContext joins chunk texts in ranked order separated by a blank line.
func JoinContext(results []*models.ScoredChunk) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, ContextSeparator)
}
