// Package main is the pdfchat CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/pdfchat/internal/config"
	"github.com/hyperjump/pdfchat/internal/embedding"
	"github.com/hyperjump/pdfchat/internal/indexer"
	"github.com/hyperjump/pdfchat/internal/keyword"
	"github.com/hyperjump/pdfchat/internal/registry"
	"github.com/hyperjump/pdfchat/internal/retrieval"
	"github.com/hyperjump/pdfchat/internal/server"
	"github.com/hyperjump/pdfchat/internal/storage"
	"github.com/hyperjump/pdfchat/internal/watcher"
	"github.com/hyperjump/pdfchat/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/pdfchat/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and a missing default file means built-in
// defaults. Provider settings left empty fall back to the environment.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; the environment may already carry the key.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "upload":
		runUpload()
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "retrieve":
		runRetrieve()
	case "documents":
		runDocuments()
	case "delete":
		runDelete()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("pdfchat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	port := fs.Int("port", 0, "override server.port")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("api_key_configured", cfg.OpenAI.APIKey != ""),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Registry.SweepInterval > 0 {
		go components.Registry.Run(ctx, cfg.Registry.SweepInterval)
	}

	opts := []server.Option{}
	if len(cfg.Watch.Directories) > 0 {
		watchSvc, err := startWatcher(ctx, cfg, components, logger)
		if err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		if watchSvc != nil {
			defer watchSvc.Stop()
			opts = append(opts, server.WithWatchService(watchSvc))
		}
	}

	srv := server.NewServer(
		cfg,
		components.Indexer,
		components.Retrieval,
		components.Registry,
		components.Storage,
		components.KeywordIndex,
		logger,
		opts...,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// startWatcher indexes PDFs dropped into the configured directories with the
// configured credentials. Without a key the watcher is skipped.
func startWatcher(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (*watcher.Watcher, error) {
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("watch directories configured but no API key; watcher disabled")
		return nil, nil
	}
	idx := c.Indexer
	drop := watcher.NewDropFolder(
		func(ctx context.Context, path string) (string, error) {
			embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
				APIKey:  cfg.OpenAI.APIKey,
				BaseURL: cfg.OpenAI.BaseURL,
				Model:   cfg.OpenAI.EmbeddingModel,
			})
			if err != nil {
				return "", err
			}
			defer embedder.Close()
			info, err := idx.IndexFile(ctx, path, cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap, embedder)
			if err != nil {
				return "", err
			}
			return info.ID, nil
		},
		idx.Remove,
		logger,
	)
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) { drop.Index(ctx, path) },
		func(path string) { drop.Remove(ctx, path) },
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(ctx); err != nil {
		return nil, err
	}
	go watchSvc.SyncExistingFiles()
	return watchSvc, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeDefaultConfig(path, *force); err != nil {
		fmt.Printf("Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}

func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return config.Save(path, config.Default())
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Registry     *registry.Registry
	Indexer      *indexer.Indexer
	Retrieval    *retrieval.Service
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func registryPolicy(cfg config.RegistryConfig) registry.Policy {
	var policies registry.Policies
	if cfg.TTL > 0 {
		policies = append(policies, registry.TTLPolicy{TTL: cfg.TTL})
	}
	if cfg.MaxDocuments > 0 {
		policies = append(policies, registry.CapacityPolicy{Max: cfg.MaxDocuments})
	}
	switch len(policies) {
	case 0:
		return registry.NoEviction{}
	case 1:
		return policies[0]
	default:
		return policies
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	// Vector indexes live in memory only, so catalog rows from a previous run are stale.
	if err := store.Purge(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to purge catalog: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	var idx *indexer.Indexer
	reg := registry.New(
		registry.WithPolicy(registryPolicy(cfg.Registry)),
		registry.WithOnEvict(func(e *registry.Entry) { idx.Evicted(e) }),
		registry.WithLogger(logger),
	)
	idx = indexer.NewIndexer(reg,
		indexer.WithStorage(store),
		indexer.WithKeywordIndex(keywordIndex),
		indexer.WithNormalizeWhitespace(cfg.Indexing.NormalizeWhitespace),
		indexer.WithLogger(logger),
	)

	return &Components{
		Storage:      store,
		KeywordIndex: keywordIndex,
		Registry:     reg,
		Indexer:      idx,
		Retrieval:    retrieval.NewService(reg, retrieval.WithLogger(logger)),
	}, nil
}

func printUsage() {
	fmt.Println(`pdfchat - chat with your PDFs

Usage:
  pdfchat server [flags]                    Start the HTTP server
  pdfchat upload [flags] <file.pdf>         Upload and index a PDF
  pdfchat ask --doc <id> [flags] <question> Ask a question about a document (streams)
  pdfchat chat [flags] <message>            Plain chat without a document (streams)
  pdfchat retrieve --doc <id> <query>       Show the chunks a question would use
  pdfchat documents [flags]                 List indexed documents
  pdfchat delete [flags] <id>               Delete a document
  pdfchat search [flags] <query>            Keyword search across documents
  pdfchat status [flags]                    Show server status
  pdfchat watch list                        List watched directories
  pdfchat init [--force] [path]             Write a default config file
  pdfchat version                           Show version
  pdfchat help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/pdfchat/config.yaml, or ./config.yaml)
  --debug            Enable debug logging
  --port int         Override server.port

Client Flags (all commands except server and init):
  --server string    Server URL (default: http://localhost:8000)
  --api-key string   OpenAI API key (default: $OPENAI_API_KEY; empty uses the server's key)
  --output string    Output format for documents, retrieve, search: text, compact, json

Upload Flags:
  --chunk-size int     Characters per chunk (default: server config)
  --chunk-overlap int  Characters shared by consecutive chunks

Ask/Chat Flags:
  --doc string       Document ID (ask, retrieve)
  --k int            Number of chunks used as context (default: server config)
  --model string     Chat model (default: server config)

Search Flags:
  --limit int        Maximum hits (default: 10)
  --fuzzy int        Edit distance tolerated per term, 0-2

Examples:
  pdfchat server
  pdfchat upload report.pdf
  pdfchat ask --doc doc_1234 "What was the revenue in Q3?"
  pdfchat search invoice total
  pdfchat documents --output json`)
}
