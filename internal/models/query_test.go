package models

import (
	"testing"
)

func TestRAGChatRequest_Validate(t *testing.T) {
	intp := func(v int) *int { return &v }
	tests := []struct {
		name    string
		req     *RAGChatRequest
		wantErr bool
		wantK   int
	}{
		{"empty message", &RAGChatRequest{DocumentID: "d"}, true, 0},
		{"missing document", &RAGChatRequest{UserMessage: "hi"}, true, 0},
		{"default k", &RAGChatRequest{UserMessage: "hi", DocumentID: "d"}, false, 3},
		{"explicit k", &RAGChatRequest{UserMessage: "hi", DocumentID: "d", K: intp(5)}, false, 5},
		{"caps k", &RAGChatRequest{UserMessage: "hi", DocumentID: "d", K: intp(500)}, false, 20},
		{"zero k kept", &RAGChatRequest{UserMessage: "hi", DocumentID: "d", K: intp(0)}, false, 0},
		{"negative k to zero", &RAGChatRequest{UserMessage: "hi", DocumentID: "d", K: intp(-2)}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(3, 20)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if *tt.req.K != tt.wantK {
				t.Errorf("K = %d, want %d", *tt.req.K, tt.wantK)
			}
			if tt.req.Model != DefaultChatModel {
				t.Errorf("Model = %q, want default", tt.req.Model)
			}
		})
	}
}

func TestChatRequest_Validate(t *testing.T) {
	r := &ChatRequest{UserMessage: "   "}
	if err := r.Validate(); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	r = &ChatRequest{UserMessage: "hello", Model: "gpt-4o"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.Model != "gpt-4o" {
		t.Errorf("explicit model overwritten: %s", r.Model)
	}
}

func TestKeywordSearchRequest_Validate(t *testing.T) {
	q := &KeywordSearchRequest{Query: "x", Limit: 500}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.Limit != 100 {
		t.Errorf("expected limit capped at 100, got %d", q.Limit)
	}
	q = &KeywordSearchRequest{Query: "x"}
	_ = q.Validate()
	if q.Limit != 10 {
		t.Errorf("expected default limit 10, got %d", q.Limit)
	}
	if err := (&KeywordSearchRequest{}).Validate(); err == nil {
		t.Error("expected error for empty query")
	}
}
