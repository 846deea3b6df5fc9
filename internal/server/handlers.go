package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/pdfchat/internal/completion"
	"github.com/hyperjump/pdfchat/internal/embedding"
	"github.com/hyperjump/pdfchat/internal/extract"
	"github.com/hyperjump/pdfchat/internal/indexer"
	"github.com/hyperjump/pdfchat/internal/keyword"
	"github.com/hyperjump/pdfchat/internal/models"
	"github.com/hyperjump/pdfchat/internal/registry"
	"github.com/hyperjump/pdfchat/internal/retrieval"
	"github.com/hyperjump/pdfchat/internal/storage"
	"github.com/hyperjump/pdfchat/internal/vector"
	"github.com/hyperjump/pdfchat/pkg/utils"
	"go.uber.org/zap"
)

const snippetLength = 200

var errMissingAPIKey = errors.New("api_key is required (or configure OPENAI_API_KEY)")

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}
	k := s.config.Retrieval.DefaultK
	if req.K != nil {
		k = *req.K
	}
	k = models.ClampK(k, s.config.Retrieval.MaxK)

	if _, err := s.registry.Lookup(id); err != nil {
		s.respondErr(w, err)
		return
	}
	embedder, err := s.queryEmbedder(req.APIKey)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	defer embedder.Close()

	s.logger.Debug("retrieve request", zap.String("document_id", id), zap.Int("k", k))
	results, err := s.retrieval.Retrieve(r.Context(), id, req.Query, k, embedder)
	if err != nil {
		s.logger.Error("retrieval failed", zap.String("document_id", id), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.RetrieveResponse{
		DocumentID: id,
		Results:    results,
		Context:    retrieval.JoinContext(results),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.DocumentInfo{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

type documentDetail struct {
	*models.DocumentInfo
	Chunks []*models.StoredChunk `json:"chunks,omitempty"`
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	detail := documentDetail{DocumentInfo: doc}
	if withChunks, _ := strconv.ParseBool(r.URL.Query().Get("chunks")); withChunks {
		detail.Chunks, err = s.storage.GetChunksByDocumentID(r.Context(), id)
		if err != nil {
			s.logger.Error("load chunks failed", zap.String("document_id", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.indexer.Remove(r.Context(), id); err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			s.logger.Error("deletion failed", zap.String("id", id), zap.Error(err))
		}
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	var req models.KeywordSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("keyword search request", zap.String("query", req.Query), zap.Int("limit", req.Limit))

	start := time.Now()
	results, err := s.keyword.Search(r.Context(), req.Query, req.Limit, &keyword.SearchOptions{
		FilenameBoost: 2.0,
		Fuzziness:     req.Fuzziness,
	})
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hits := make([]*models.KeywordHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, &models.KeywordHit{
			DocumentID: res.DocumentID,
			ChunkIndex: res.ChunkIndex,
			Score:      res.Score,
			Snippet:    utils.Truncate(res.Content, snippetLength),
		})
	}
	s.respondJSON(w, http.StatusOK, &models.KeywordSearchResponse{
		Query:     req.Query,
		Hits:      hits,
		Total:     len(hits),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	keywordChunks, err := s.keyword.DocCount()
	if err != nil {
		s.logger.Error("status: keyword count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":      docCount,
		"chunks":         chunkCount,
		"indexed":        s.registry.Len(),
		"keyword_chunks": keywordChunks,
		"query_cache":    s.queryCache.Stats(),
		"config": map[string]interface{}{
			"chunk_size":      s.config.Indexing.ChunkSize,
			"chunk_overlap":   s.config.Indexing.ChunkOverlap,
			"default_k":       s.config.Retrieval.DefaultK,
			"max_k":           s.config.Retrieval.MaxK,
			"embedding_model": s.config.OpenAI.EmbeddingModel,
			"chat_model":      s.config.OpenAI.ChatModel,
			"registry_ttl":    s.config.Registry.TTL.String(),
			"max_documents":   s.config.Registry.MaxDocuments,
		},
	})
}

func (s *Server) handleWatchDirectories(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

// apiKey resolves the credential for one request: the request's own key wins,
// then the configured key.
func (s *Server) apiKey(requestKey string) (string, error) {
	if requestKey != "" {
		return requestKey, nil
	}
	if s.config.OpenAI.APIKey != "" {
		return s.config.OpenAI.APIKey, nil
	}
	return "", errMissingAPIKey
}

func (s *Server) embedder(requestKey string) (embedding.Embedder, error) {
	key, err := s.apiKey(requestKey)
	if err != nil {
		return nil, err
	}
	e, err := s.newEmbedder(key)
	if err != nil {
		return nil, errors.Join(embedding.ErrProvider, err)
	}
	return e, nil
}

// queryEmbedder puts the shared query cache in front of a per-request embedder.
// Cached vectors are only served to callers presenting the same credential.
func (s *Server) queryEmbedder(requestKey string) (embedding.Embedder, error) {
	key, err := s.apiKey(requestKey)
	if err != nil {
		return nil, err
	}
	e, err := s.embedder(key)
	if err != nil {
		return nil, err
	}
	return embedding.NewCachedEmbedder(e, s.queryCache, s.cacheNamespace(key)), nil
}

func (s *Server) cacheNamespace(key string) string {
	sum := sha256.Sum256([]byte(key))
	return s.config.OpenAI.BaseURL + "|" + s.config.OpenAI.EmbeddingModel + "|" + hex.EncodeToString(sum[:8])
}

func (s *Server) generator(requestKey string) (completion.Generator, error) {
	key, err := s.apiKey(requestKey)
	if err != nil {
		return nil, err
	}
	g, err := s.newGenerator(key)
	if err != nil {
		return nil, errors.Join(completion.ErrProvider, err)
	}
	return g, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingAPIKey),
		errors.Is(err, indexer.ErrInvalidConfig),
		errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vector.ErrEmbeddingFailure),
		errors.Is(err, vector.ErrDimensionMismatch),
		errors.Is(err, embedding.ErrProvider),
		errors.Is(err, completion.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusNotFound {
		msg = "Document not found. Please upload a PDF first."
	}
	s.respondError(w, status, msg)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
