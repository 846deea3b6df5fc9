package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/pdfchat/internal/completion"
	"github.com/hyperjump/pdfchat/internal/config"
	"github.com/hyperjump/pdfchat/internal/embedding"
	"github.com/hyperjump/pdfchat/internal/extract"
	"github.com/hyperjump/pdfchat/internal/indexer"
	"github.com/hyperjump/pdfchat/internal/keyword"
	"github.com/hyperjump/pdfchat/internal/registry"
	"github.com/hyperjump/pdfchat/internal/retrieval"
	"github.com/hyperjump/pdfchat/internal/storage"
	"go.uber.org/zap"
)

// EmbedderFactory builds an embedder bound to one request's credentials.
type EmbedderFactory func(apiKey string) (embedding.Embedder, error)

// GeneratorFactory builds a completion generator bound to one request's credentials.
type GeneratorFactory func(apiKey string) (completion.Generator, error)

// WatchService is the watcher surface exposed over HTTP.
type WatchService interface {
	Directories() []string
}

// Server serves the chat, upload and document APIs.
type Server struct {
	config       *config.Config
	indexer      *indexer.Indexer
	retrieval    *retrieval.Service
	registry     *registry.Registry
	storage      storage.Storage
	keyword      keyword.KeywordIndex
	extractor    *extract.Extractor
	queryCache   *embedding.EmbeddingCache
	newEmbedder  EmbedderFactory
	newGenerator GeneratorFactory
	watch        WatchService
	logger       *zap.Logger
	server       *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithEmbedderFactory replaces the OpenAI embedder factory.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(s *Server) { s.newEmbedder = f }
}

// WithGeneratorFactory replaces the OpenAI generator factory.
func WithGeneratorFactory(f GeneratorFactory) Option {
	return func(s *Server) { s.newGenerator = f }
}

// WithWatchService exposes the watched directories under /api/watch.
func WithWatchService(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	idx *indexer.Indexer,
	ret *retrieval.Service,
	reg *registry.Registry,
	store storage.Storage,
	kw keyword.KeywordIndex,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		config:     cfg,
		indexer:    idx,
		retrieval:  ret,
		registry:   reg,
		storage:    store,
		keyword:    kw,
		extractor:  extract.NewExtractor(),
		queryCache: embedding.NewEmbeddingCache(cfg.Embedding.QueryCacheSize),
		logger:     logger,
	}
	s.newEmbedder = s.openAIEmbedder
	s.newGenerator = s.openAIGenerator
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) openAIEmbedder(apiKey string) (embedding.Embedder, error) {
	return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: s.config.OpenAI.BaseURL,
		Model:   s.config.OpenAI.EmbeddingModel,
	})
}

func (s *Server) openAIGenerator(apiKey string) (completion.Generator, error) {
	return completion.NewOpenAIGenerator(completion.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: s.config.OpenAI.BaseURL,
	})
}

// Router builds the HTTP handler. Streaming routes bypass the timeout and
// compression middleware so fragments reach the client as they are produced.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/rag-chat", s.handleRAGChat)

		r.Group(func(r chi.Router) {
			if s.config.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
			}
			r.Use(middleware.Compress(5))

			r.Post("/upload-pdf", s.handleUploadPDF)
			r.Post("/search", s.handleKeywordSearch)
			r.Get("/health", s.handleHealth)
			r.Get("/status", s.handleStatus)
			r.Get("/watch/directories", s.handleWatchDirectories)

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", s.handleListDocuments)
				r.Get("/{id}", s.handleGetDocument)
				r.Delete("/{id}", s.handleDeleteDocument)
				r.Post("/{id}/retrieve", s.handleRetrieve)
			})
		})
	})

	return r
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
