package config

import "time"

// MemoryDatabase keeps the document catalog in memory.
const MemoryDatabase = ":memory:"

// Defaults mirror the original upload and chat endpoints.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultK              = 3
	DefaultMaxK           = 20
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = DefaultChatModel
	}
	if cfg.Indexing.ChunkSize == 0 {
		cfg.Indexing.ChunkSize = DefaultChunkSize
		if cfg.Indexing.ChunkOverlap == 0 {
			cfg.Indexing.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = DefaultK
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = DefaultMaxK
	}
	if cfg.Registry.SweepInterval == 0 {
		cfg.Registry.SweepInterval = time.Minute
	}
	if cfg.Embedding.QueryCacheSize == 0 {
		cfg.Embedding.QueryCacheSize = 1000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = MemoryDatabase
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
