// Package keyword provides keyword (BM25) search over the chunks of every indexed document.
package keyword

import (
	"context"

	"github.com/hyperjump/pdfchat/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FilenameBoost multiplies the score contribution from matches in the filename.
	// Values <= 1 search chunk content only.
	FilenameBoost float64
	// Fuzziness is the maximum Levenshtein edit distance for typo tolerance (0 disables, max 2).
	Fuzziness int
}

// KeywordIndex defines keyword search operations. Implementations are safe for concurrent use.
type KeywordIndex interface {
	// IndexChunks adds every chunk of a document in one batch.
	IndexChunks(ctx context.Context, docID, filename string, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// Delete removes every chunk of a document.
	Delete(ctx context.Context, docID string) error
	// DocCount returns the total number of indexed chunks.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword hit on one chunk.
type KeywordResult struct {
	DocumentID string
	ChunkIndex int
	Score      float64
	Content    string
}
