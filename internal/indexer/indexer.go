package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfchat/internal/embedding"
	"github.com/hyperjump/pdfchat/internal/extract"
	"github.com/hyperjump/pdfchat/internal/keyword"
	"github.com/hyperjump/pdfchat/internal/models"
	"github.com/hyperjump/pdfchat/internal/registry"
	"github.com/hyperjump/pdfchat/internal/storage"
	"github.com/hyperjump/pdfchat/internal/vector"
)

// DocumentInput is raw document text plus the chunking parameters to index it with.
type DocumentInput struct {
	Filename     string
	Text         string
	ChunkSize    int
	ChunkOverlap int
}

// Indexer turns documents into registered vector stores. The catalog and
// keyword index are optional side indexes kept in step with the registry.
type Indexer struct {
	registry     *registry.Registry
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	extractor    *extract.Extractor
	normalize    bool
	logger       *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (document indexed, removed, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithStorage records every indexed document in the catalog.
func WithStorage(s storage.Storage) IndexerOption {
	return func(idx *Indexer) { idx.storage = s }
}

// WithKeywordIndex adds every indexed chunk to the keyword index.
func WithKeywordIndex(k keyword.KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithExtractor sets the extractor used by IndexFile. Defaults to extract.NewExtractor().
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// WithNormalizeWhitespace collapses whitespace runs before chunking.
func WithNormalizeWhitespace(on bool) IndexerOption {
	return func(idx *Indexer) { idx.normalize = on }
}

// NewIndexer creates an indexer that registers stores in reg.
func NewIndexer(reg *registry.Registry, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		registry:  reg,
		extractor: extract.NewExtractor(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexDocument chunks the text, embeds every chunk in one batch and registers
// the resulting store under a fresh handle. Nothing is registered unless every
// step succeeds; a failed side index rolls the registration back.
func (idx *Indexer) IndexDocument(ctx context.Context, input DocumentInput, embedder embedding.Embedder) (*models.DocumentInfo, error) {
	start := time.Now()
	text := input.Text
	if idx.normalize {
		text = Preprocess(text)
	}
	chunks, err := Split(text, input.ChunkSize, input.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	store, err := vector.Build(ctx, chunks, embedder)
	if err != nil {
		return nil, err
	}
	// The embedder may have finished just as the caller went away.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := idx.registry.Register(store, models.DocumentInfo{
		Filename:     input.Filename,
		ChunksCount:  len(chunks),
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	})
	info := entry.Info

	if err := idx.addSideIndexes(ctx, &info, chunks); err != nil {
		idx.registry.Remove(info.ID)
		idx.dropSideIndexes(context.WithoutCancel(ctx), info.ID)
		return nil, err
	}
	// A concurrent registration may have evicted the handle while the side
	// indexes were written; the eviction hook ran before those rows existed.
	if _, err := idx.registry.Lookup(info.ID); err != nil {
		idx.dropSideIndexes(context.WithoutCancel(ctx), info.ID)
		return nil, fmt.Errorf("document %s evicted during indexing: %w", info.ID, err)
	}

	if idx.logger != nil {
		idx.logger.Debug("indexer document indexed",
			zap.String("doc_id", info.ID),
			zap.String("filename", info.Filename),
			zap.Int("chunks", info.ChunksCount),
			zap.Duration("duration", time.Since(start)))
	}
	return &info, nil
}

// IndexFile extracts text from path and indexes it under the file's base name.
func (idx *Indexer) IndexFile(ctx context.Context, path string, chunkSize, overlap int, embedder embedding.Embedder) (*models.DocumentInfo, error) {
	if idx.logger != nil {
		idx.logger.Debug("indexer indexing file", zap.String("path", path))
	}
	text, err := idx.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return idx.IndexDocument(ctx, DocumentInput{
		Filename:     filepath.Base(path),
		Text:         text,
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
	}, embedder)
}

// Remove unregisters handle and drops it from the side indexes.
// It returns registry.ErrNotFound if the handle is not registered. Once the
// handle is unregistered the document is gone, so side index failures are
// only logged.
func (idx *Indexer) Remove(ctx context.Context, handle string) error {
	if idx.logger != nil {
		idx.logger.Debug("indexer removing document", zap.String("doc_id", handle))
	}
	if !idx.registry.Remove(handle) {
		return registry.ErrNotFound
	}
	if err := idx.dropSideIndexes(ctx, handle); err != nil && idx.logger != nil {
		idx.logger.Warn("failed to drop removed document", zap.String("doc_id", handle), zap.Error(err))
	}
	return nil
}

// Evicted drops side index entries for a document the registry evicted on its own.
// It is meant to be passed to registry.WithOnEvict.
func (idx *Indexer) Evicted(entry *registry.Entry) {
	if err := idx.dropSideIndexes(context.Background(), entry.Handle); err != nil && idx.logger != nil {
		idx.logger.Warn("failed to drop evicted document", zap.String("doc_id", entry.Handle), zap.Error(err))
	}
}

func (idx *Indexer) addSideIndexes(ctx context.Context, info *models.DocumentInfo, chunks []models.Chunk) error {
	if idx.storage != nil {
		stored := make([]*models.StoredChunk, len(chunks))
		for i, ch := range chunks {
			stored[i] = &models.StoredChunk{
				DocumentID:   info.ID,
				ChunkIndex:   i,
				Content:      ch.Text,
				SourceOffset: ch.SourceOffset,
			}
		}
		if err := idx.storage.CreateDocument(ctx, info, stored); err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.IndexChunks(ctx, info.ID, info.Filename, chunks); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return nil
}

func (idx *Indexer) dropSideIndexes(ctx context.Context, handle string) error {
	var errs []error
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Delete(ctx, handle); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete from keyword index: %w", err))
		}
	}
	if idx.storage != nil {
		if err := idx.storage.DeleteDocument(ctx, handle); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete document: %w", err))
		}
	}
	return errors.Join(errs...)
}
