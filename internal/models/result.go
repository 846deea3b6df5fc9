package models

// ScoredChunk is a retrieval hit: a stored chunk with its cosine similarity.
type ScoredChunk struct {
	Chunk
	Index int     `json:"chunk_index"`
	Score float64 `json:"score"`
}

// RetrieveResponse lists ranked chunks and the assembled context.
type RetrieveResponse struct {
	DocumentID string         `json:"document_id"`
	Results    []*ScoredChunk `json:"results"`
	Context    string         `json:"context"`
}

// KeywordHit is a keyword match on one chunk of one document.
type KeywordHit struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
}

// KeywordSearchResponse is the response for a keyword search request.
type KeywordSearchResponse struct {
	Query     string        `json:"query"`
	Hits      []*KeywordHit `json:"hits"`
	Total     int           `json:"total"`
	QueryTime int64         `json:"query_time_ms"`
}
