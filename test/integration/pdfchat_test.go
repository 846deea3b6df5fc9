// Package integration runs the full upload, retrieve and chat flow against a
// fake OpenAI-compatible provider.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/pdfchat/internal/config"
	"github.com/hyperjump/pdfchat/internal/indexer"
	"github.com/hyperjump/pdfchat/internal/keyword"
	"github.com/hyperjump/pdfchat/internal/models"
	"github.com/hyperjump/pdfchat/internal/registry"
	"github.com/hyperjump/pdfchat/internal/retrieval"
	"github.com/hyperjump/pdfchat/internal/server"
	"github.com/hyperjump/pdfchat/internal/storage"
	"go.uber.org/zap"
)

// letterVector embeds text as normalized letter counts, so texts sharing
// letters score higher than texts that do not.
func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

type fakeProvider struct {
	mu      sync.Mutex
	auth    []string
	systems []string
}

func (p *fakeProvider) record(r *http.Request) {
	p.mu.Lock()
	p.auth = append(p.auth, r.Header.Get("Authorization"))
	p.mu.Unlock()
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.record(r)
	switch r.URL.Path {
	case "/v1/embeddings":
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]interface{}, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]interface{}{"object": "embedding", "index": i, "embedding": letterVector(in)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"object": "list", "data": data})
	case "/v1/chat/completions":
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, m := range req.Messages {
			if m.Role == "system" {
				p.mu.Lock()
				p.systems = append(p.systems, m.Content)
				p.mu.Unlock()
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range []string{"The zebra ", "is striped."} {
			fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", f)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	default:
		http.NotFound(w, r)
	}
}

func minimalPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [4 0 R] /Count 1 >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestIntegration_UploadAskDelete(t *testing.T) {
	provider := &fakeProvider{}
	providerSrv := httptest.NewServer(provider)
	defer providerSrv.Close()

	cfg := config.Default()
	cfg.OpenAI.BaseURL = providerSrv.URL + "/v1"

	store, err := storage.NewSQLiteStorage(storage.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	kwIndex, err := keyword.NewBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	var idx *indexer.Indexer
	reg := registry.New(registry.WithOnEvict(func(e *registry.Entry) { idx.Evicted(e) }))
	idx = indexer.NewIndexer(reg, indexer.WithStorage(store), indexer.WithKeywordIndex(kwIndex))
	srv := server.NewServer(cfg, idx, retrieval.NewService(reg), reg, store, kwIndex, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Upload: 20-character chunks, only one of them dense with zebras.
	text := "apples and pears ok zebra zebra zebra z " + "plums grapes figs ok"
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "animals.pdf")
	_, _ = fw.Write(minimalPDF(text))
	_ = mw.WriteField("api_key", "sk-int")
	_ = mw.WriteField("chunk_size", "20")
	_ = mw.Close()
	resp, err := http.Post(ts.URL+"/api/upload-pdf", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	var upload models.UploadResponse
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d: %s", resp.StatusCode, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if upload.ChunksCount < 3 {
		t.Fatalf("chunks = %d, want at least 3", upload.ChunksCount)
	}

	// Retrieve: the zebra chunk ranks first.
	k := 1
	rb, _ := json.Marshal(models.RetrieveRequest{Query: "zebra", K: &k, APIKey: "sk-int"})
	resp, err = http.Post(ts.URL+"/api/documents/"+upload.DocumentID+"/retrieve", "application/json", bytes.NewReader(rb))
	if err != nil {
		t.Fatal(err)
	}
	var retrieved models.RetrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&retrieved); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(retrieved.Results) != 1 || !strings.Contains(retrieved.Results[0].Text, "zebra zebra") {
		t.Fatalf("retrieved = %+v", retrieved.Results)
	}

	// RAG chat streams the provider's fragments and grounds the prompt on the zebra chunk.
	cb, _ := json.Marshal(models.RAGChatRequest{UserMessage: "zebra", DocumentID: upload.DocumentID, APIKey: "sk-int", K: &k})
	resp, err = http.Post(ts.URL+"/api/rag-chat", "application/json", bytes.NewReader(cb))
	if err != nil {
		t.Fatal(err)
	}
	answer, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(answer) != "The zebra is striped." {
		t.Fatalf("rag-chat status = %d body = %q", resp.StatusCode, answer)
	}
	provider.mu.Lock()
	systems := append([]string(nil), provider.systems...)
	auth := append([]string(nil), provider.auth...)
	provider.mu.Unlock()
	if len(systems) != 1 || !strings.Contains(systems[0], "Context:\n"+retrieved.Results[0].Text) {
		t.Errorf("system prompts = %q", systems)
	}
	for _, a := range auth {
		if a != "Bearer sk-int" {
			t.Errorf("provider saw Authorization %q", a)
		}
	}

	// Keyword search finds the document.
	sb, _ := json.Marshal(models.KeywordSearchRequest{Query: "zebra"})
	resp, err = http.Post(ts.URL+"/api/search", "application/json", bytes.NewReader(sb))
	if err != nil {
		t.Fatal(err)
	}
	var hits models.KeywordSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if hits.Total == 0 || hits.Hits[0].DocumentID != upload.DocumentID {
		t.Errorf("keyword hits = %+v", hits)
	}

	// Delete removes it from every index.
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/documents/"+upload.DocumentID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if n, _ := kwIndex.DocCount(); n != 0 {
		t.Errorf("keyword index still has %d chunks", n)
	}
	if docs, _ := store.ListDocuments(context.Background(), 0, 0); len(docs) != 0 {
		t.Errorf("catalog still lists %d documents", len(docs))
	}
	resp, err = http.Post(ts.URL+"/api/rag-chat", "application/json", bytes.NewReader(cb))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("rag-chat after delete status = %d", resp.StatusCode)
	}
}
