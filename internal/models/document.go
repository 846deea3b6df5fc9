// Package models defines core data structures for chunks, documents, chat requests, and results.
package models

import "time"

// Chunk is a contiguous substring of a source document.
type Chunk struct {
	Text string `json:"text"`
	// SourceOffset is the character (rune) offset of Text in the source document.
	SourceOffset int `json:"source_offset"`
}

// DocumentInfo describes an indexed document registered under a handle.
type DocumentInfo struct {
	ID           string    `json:"id" db:"id"`
	Filename     string    `json:"filename,omitempty" db:"filename"`
	ChunksCount  int       `json:"chunks_count" db:"chunks_count"`
	ChunkSize    int       `json:"chunk_size" db:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap" db:"chunk_overlap"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// StoredChunk is a chunk persisted in the document catalog.
type StoredChunk struct {
	DocumentID   string `json:"document_id" db:"document_id"`
	ChunkIndex   int    `json:"chunk_index" db:"chunk_index"`
	Content      string `json:"content" db:"content"`
	SourceOffset int    `json:"source_offset" db:"source_offset"`
}

// UploadResponse is returned after a PDF is uploaded and indexed.
type UploadResponse struct {
	Message     string `json:"message"`
	DocumentID  string `json:"document_id"`
	ChunksCount int    `json:"chunks_count"`
	Filename    string `json:"filename"`
}
