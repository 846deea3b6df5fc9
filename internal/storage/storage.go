// Package storage defines the document catalog: metadata and chunk text for every indexed document.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/pdfchat/internal/models"
)

// ErrNotFound is returned when a document is not in the catalog.
var ErrNotFound = errors.New("document not found in catalog")

// Storage defines catalog operations. Vectors are not persisted; the catalog
// only records what was indexed so documents can be listed and inspected.
type Storage interface {
	// CreateDocument inserts a document and its chunks atomically.
	CreateDocument(ctx context.Context, doc *models.DocumentInfo, chunks []*models.StoredChunk) error
	GetDocument(ctx context.Context, id string) (*models.DocumentInfo, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.DocumentInfo, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.StoredChunk, error)
	GetChunk(ctx context.Context, docID string, index int) (*models.StoredChunk, error)
	DeleteDocument(ctx context.Context, id string) error

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	// Purge removes every document. Used at startup because vector indexes
	// do not survive a restart.
	Purge(ctx context.Context) error

	Close() error
}
