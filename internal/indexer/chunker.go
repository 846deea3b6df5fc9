// Package indexer splits documents into chunks and builds registered vector indexes.
package indexer

import (
	"errors"
	"fmt"

	"github.com/hyperjump/pdfchat/internal/models"
)

// ErrInvalidConfig is returned for chunk sizes and overlaps that cannot produce windows.
var ErrInvalidConfig = errors.New("invalid chunking config")

// Chunker splits text into overlapping fixed-size character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// It fails with ErrInvalidConfig unless chunkSize > 0 and 0 <= chunkOverlap < chunkSize.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, chunkSize, chunkOverlap)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Split is a convenience for NewChunker(chunkSize, overlap) followed by Chunk.
func Split(document string, chunkSize, overlap int) ([]models.Chunk, error) {
	c, err := NewChunker(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(document), nil
}

// Chunk slides a window of chunkSize characters over text, advancing by
// chunkSize-chunkOverlap each step. The last window is truncated to the tail.
// Empty text yields nil.
func (c *Chunker) Chunk(text string) []models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]models.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			Text:         string(runes[start:end]),
			SourceOffset: start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
