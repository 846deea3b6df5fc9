package keyword

import (
	"context"
	"testing"

	"github.com/hyperjump/pdfchat/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex()
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func chunks(texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, s := range texts {
		out[i] = models.Chunk{Text: s}
	}
	return out
}

func TestBleveIndex_SearchFindsChunk(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.IndexChunks(ctx, "doc_a", "report.pdf", chunks(
		"Quarterly revenue grew in every region.",
		"This report mentions Omnisyan and other findings.",
		"The Bayes app is also referenced.",
	))
	if err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	if n, _ := idx.DocCount(); n != 3 {
		t.Errorf("DocCount = %d, want 3", n)
	}

	results, err := idx.Search(ctx, "Omnisyan", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.DocumentID != "doc_a" || r.ChunkIndex != 1 {
		t.Errorf("hit = %s#%d, want doc_a#1", r.DocumentID, r.ChunkIndex)
	}
	if r.Content != "This report mentions Omnisyan and other findings." {
		t.Errorf("Content = %q", r.Content)
	}

	// No stemming: "bayes" matches "Bayes".
	results, err = idx.Search(ctx, "bayes", 10, nil)
	if err != nil {
		t.Fatalf("Search bayes: %v", err)
	}
	if len(results) != 1 || results[0].ChunkIndex != 2 {
		t.Errorf("unexpected results for bayes: %+v", results)
	}
}

func TestBleveIndex_SearchAcrossDocuments(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_ = idx.IndexChunks(ctx, "doc_a", "a.pdf", chunks("solar panels and wind turbines"))
	_ = idx.IndexChunks(ctx, "doc_b", "b.pdf", chunks("wind tunnels", "unrelated text"))

	results, err := idx.Search(ctx, "wind", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := map[string]bool{}
	for _, r := range results {
		found[r.DocumentID] = true
	}
	if !found["doc_a"] || !found["doc_b"] || len(results) != 2 {
		t.Errorf("expected hits in both documents, got %+v", results)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.IndexChunks(ctx, "doc_a", "a.pdf", chunks("the algorithm converges quickly"))

	results, _ := idx.Search(ctx, "algoritm", 10, nil)
	if len(results) != 0 {
		t.Errorf("exact search matched a typo: %+v", results)
	}
	results, err := idx.Search(ctx, "algoritm", 10, &SearchOptions{Fuzziness: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("fuzzy search found %d results, want 1", len(results))
	}
}

func TestBleveIndex_FilenameBoost(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.IndexChunks(ctx, "doc_a", "budget_plan.pdf", chunks("numbers for next year"))
	_ = idx.IndexChunks(ctx, "doc_b", "notes.pdf", chunks("numbers"))

	results, err := idx.Search(ctx, "budget", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("content-only search matched filename: %+v", results)
	}

	results, err = idx.Search(ctx, "budget", 10, &SearchOptions{FilenameBoost: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc_a" {
		t.Errorf("expected filename match on doc_a, got %+v", results)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.IndexChunks(ctx, "doc_a", "a.pdf", chunks("alpha", "alpha beta", "gamma"))
	_ = idx.IndexChunks(ctx, "doc_b", "b.pdf", chunks("alpha"))

	if err := idx.Delete(ctx, "doc_a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("DocCount after delete = %d, want 1", n)
	}
	results, _ := idx.Search(ctx, "alpha", 10, nil)
	if len(results) != 1 || results[0].DocumentID != "doc_b" {
		t.Errorf("unexpected results after delete: %+v", results)
	}
	if err := idx.Delete(ctx, "doc_missing"); err != nil {
		t.Errorf("Delete of unknown document: %v", err)
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "   ", 10, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("empty query: results=%v err=%v", results, err)
	}
}

func TestParseChunkID(t *testing.T) {
	tests := []struct {
		id      string
		wantDoc string
		wantIdx int
		ok      bool
	}{
		{"doc_1#0", "doc_1", 0, true},
		{"doc#with#hash#12", "doc#with#hash", 12, true},
		{"nohash", "", 0, false},
		{"doc#x", "", 0, false},
	}
	for _, tt := range tests {
		doc, idx, ok := parseChunkID(tt.id)
		if ok != tt.ok || doc != tt.wantDoc || idx != tt.wantIdx {
			t.Errorf("parseChunkID(%q) = %q, %d, %v", tt.id, doc, idx, ok)
		}
	}
}
