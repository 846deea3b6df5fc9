package models

import (
	"errors"
	"strings"
)

// DefaultChatModel is used when a request does not name a model.
const DefaultChatModel = "gpt-4o-mini"

// ErrEmptyMessage is returned when a chat request carries no user message.
var ErrEmptyMessage = errors.New("user_message cannot be empty")

// ChatRequest is a plain (no retrieval) streaming chat request.
type ChatRequest struct {
	UserMessage string `json:"user_message"`
	Model       string `json:"model,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

// Validate checks the message and fills the default model.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.UserMessage) == "" {
		return ErrEmptyMessage
	}
	if r.Model == "" {
		r.Model = DefaultChatModel
	}
	return nil
}

// RAGChatRequest is a chat request grounded on one indexed document.
type RAGChatRequest struct {
	UserMessage string `json:"user_message"`
	DocumentID  string `json:"document_id"`
	Model       string `json:"model,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	// K is the number of chunks to retrieve; nil means the configured default.
	K *int `json:"k,omitempty"`
}

// Validate checks required fields, fills defaults, and caps K at maxK.
// A negative K is kept as zero so that retrieval yields an empty context.
func (r *RAGChatRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(r.UserMessage) == "" {
		return ErrEmptyMessage
	}
	if r.DocumentID == "" {
		return errors.New("document_id cannot be empty")
	}
	if r.Model == "" {
		r.Model = DefaultChatModel
	}
	k := defaultK
	if r.K != nil {
		k = *r.K
	}
	k = ClampK(k, maxK)
	r.K = &k
	return nil
}

// ClampK bounds k to [0, maxK]. maxK <= 0 means no upper bound.
func ClampK(k, maxK int) int {
	if k < 0 {
		return 0
	}
	if maxK > 0 && k > maxK {
		return maxK
	}
	return k
}

// RetrieveRequest asks for the ranked chunks of a document without generation.
type RetrieveRequest struct {
	Query  string `json:"query"`
	K      *int   `json:"k,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

// KeywordSearchRequest searches chunk text across all indexed documents.
type KeywordSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	// Fuzziness is the edit distance tolerated per term (0-2).
	Fuzziness int `json:"fuzziness,omitempty"`
}

// Validate ensures the query is set and normalizes the limit to [1, 100].
func (q *KeywordSearchRequest) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Fuzziness < 0 || q.Fuzziness > 2 {
		return errors.New("fuzziness must be between 0 and 2")
	}
	return nil
}
