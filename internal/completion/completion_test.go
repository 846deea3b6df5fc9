package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", content)
}

func newFakeChatServer(t *testing.T, status int, fragments ...string) (*httptest.Server, *[]string) {
	t.Helper()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization=%q", got)
		}
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// Role-only header chunk, as the real API sends first.
		_, _ = io.WriteString(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`+"\n\n")
		for _, f := range fragments {
			_, _ = io.WriteString(w, sseChunk(f))
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func collect(t *testing.T, s Stream) ([]string, error) {
	t.Helper()
	defer s.Close()
	var out []string
	err := Forward(s, func(f string) error {
		out = append(out, f)
		return nil
	})
	return out, err
}

func TestOpenAIGenerator_Stream(t *testing.T) {
	srv, bodies := newFakeChatServer(t, http.StatusOK, "Hello", ", ", "world")
	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}

	s, err := g.Stream(context.Background(), RAGPrompt("gpt-4o-mini", "the sky is blue", "what color is the sky?"))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	got, err := collect(t, s)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if strings.Join(got, "") != "Hello, world" || len(got) != 3 {
		t.Errorf("fragments = %q", got)
	}

	if len(*bodies) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*bodies))
	}
	body := (*bodies)[0]
	for _, want := range []string{`"stream":true`, `"model":"gpt-4o-mini"`, "the sky is blue", "what color is the sky?", `"role":"system"`} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %s: %s", want, body)
		}
	}
}

func TestOpenAIGenerator_ProviderError(t *testing.T) {
	srv, _ := newFakeChatServer(t, http.StatusUnauthorized)
	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Stream(context.Background(), ChatPrompt("gpt-4o-mini", "hi"))
	if !errors.Is(err, ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
}

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIGenerator(OpenAIConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestRAGPrompt(t *testing.T) {
	p := RAGPrompt("m", "CTX-BLOCK", "QUESTION")
	if p.Model != "m" || p.User != "QUESTION" {
		t.Errorf("unexpected prompt: %+v", p)
	}
	if !strings.Contains(p.System, "Context:\nCTX-BLOCK") {
		t.Errorf("system prompt missing context: %q", p.System)
	}
	if !strings.Contains(p.System, "cannot find the information in the provided document") {
		t.Errorf("system prompt missing fallback instruction: %q", p.System)
	}
}

func TestChatPrompt(t *testing.T) {
	p := ChatPrompt("m", "hello")
	if p.System != DefaultSystemPrompt || p.User != "hello" {
		t.Errorf("unexpected prompt: %+v", p)
	}
}

func TestStaticGenerator(t *testing.T) {
	g := &StaticGenerator{Fragments: []string{"a", "b"}}
	s, err := g.Stream(context.Background(), ChatPrompt("m", "q"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := collect(t, s)
	if err != nil || strings.Join(got, "") != "ab" {
		t.Errorf("got %q, %v", got, err)
	}
	if ps := g.Prompts(); len(ps) != 1 || ps[0].User != "q" {
		t.Errorf("recorded prompts = %+v", ps)
	}
}

func TestForward_MidStreamErrorKeepsDelivered(t *testing.T) {
	boom := errors.New("connection reset")
	g := &StaticGenerator{Fragments: []string{"partial ", "answer"}, Err: boom}
	s, _ := g.Stream(context.Background(), ChatPrompt("m", "q"))
	got, err := collect(t, s)
	if !errors.Is(err, boom) {
		t.Errorf("expected stream error, got %v", err)
	}
	if strings.Join(got, "") != "partial answer" {
		t.Errorf("delivered fragments = %q", got)
	}
}

func TestForward_EmitErrorStops(t *testing.T) {
	g := &StaticGenerator{Fragments: []string{"1", "2", "3"}}
	s, _ := g.Stream(context.Background(), ChatPrompt("m", "q"))
	defer s.Close()
	n := 0
	err := Forward(s, func(string) error {
		n++
		if n == 2 {
			return errors.New("client gone")
		}
		return nil
	})
	if err == nil || n != 2 {
		t.Errorf("Forward err=%v after %d emits", err, n)
	}
}

func TestStaticStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &StaticGenerator{Fragments: []string{"x", "y"}}
	s, err := g.Stream(ctx, ChatPrompt("m", "q"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if f, _ := s.Recv(); f != "x" {
		t.Fatalf("first fragment = %q", f)
	}
	cancel()
	if _, err := s.Recv(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
