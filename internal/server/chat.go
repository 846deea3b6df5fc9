package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hyperjump/pdfchat/internal/completion"
	"github.com/hyperjump/pdfchat/internal/models"
	"go.uber.org/zap"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		req.Model = s.config.OpenAI.ChatModel
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	gen, err := s.generator(req.APIKey)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	s.logger.Debug("chat request", zap.String("model", req.Model))
	stream, err := gen.Stream(r.Context(), completion.ChatPrompt(req.Model, req.UserMessage))
	if err != nil {
		s.logger.Error("chat completion failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.streamText(w, r, stream)
}

func (s *Server) handleRAGChat(w http.ResponseWriter, r *http.Request) {
	var req models.RAGChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		req.Model = s.config.OpenAI.ChatModel
	}
	if err := req.Validate(s.config.Retrieval.DefaultK, s.config.Retrieval.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.registry.Lookup(req.DocumentID); err != nil {
		s.respondErr(w, err)
		return
	}
	embedder, err := s.queryEmbedder(req.APIKey)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	defer embedder.Close()
	gen, err := s.generator(req.APIKey)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	s.logger.Debug("rag chat request",
		zap.String("document_id", req.DocumentID),
		zap.String("model", req.Model),
		zap.Int("k", *req.K))
	ctxText, err := s.retrieval.RetrieveContext(r.Context(), req.DocumentID, req.UserMessage, *req.K, embedder)
	if err != nil {
		s.logger.Error("retrieval failed", zap.String("document_id", req.DocumentID), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	stream, err := gen.Stream(r.Context(), completion.RAGPrompt(req.Model, ctxText, req.UserMessage))
	if err != nil {
		s.logger.Error("rag completion failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.streamText(w, r, stream)
}

// streamText writes each fragment as it arrives and flushes it to the client.
// Once the first byte is written the status is fixed, so later failures only end the body.
func (s *Server) streamText(w http.ResponseWriter, r *http.Request, stream completion.Stream) {
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	fragments := 0
	err := completion.Forward(stream, func(fragment string) error {
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		fragments++
		return nil
	})
	switch {
	case err == nil:
		s.logger.Debug("stream finished", zap.Int("fragments", fragments))
	case errors.Is(err, context.Canceled) || r.Context().Err() != nil:
		s.logger.Debug("client went away mid-stream", zap.Int("fragments", fragments))
	default:
		s.logger.Warn("stream aborted", zap.Int("fragments", fragments), zap.Error(err))
	}
}
