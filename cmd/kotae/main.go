// Package main is the kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:3000"
)

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory; when neither exists, the config is
// built from defaults and environment variables alone.
// Returns the config and the path that was actually loaded ("" for env only).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.FromEnv(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadEnvFile reads .env from the working directory when present.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "chunks":
		runChunks()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
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
	document := fs.String("document", "", "document to answer questions about (overrides config)")
	port := fs.Int("port", 0, "listen port (overrides config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if err := loadEnvFile(); err != nil {
		fmt.Printf("Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyServerFlags(cfg, *document, *port)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config:\n%v\n", err)
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
		zap.String("document", cfg.Document.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("debug", debugMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Engine, components.Store, components.Metrics, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func applyServerFlags(cfg *config.Config, document string, port int) {
	if document != "" {
		if abs, err := filepath.Abs(document); err == nil {
			document = abs
		}
		cfg.Document.Path = document
	}
	if port > 0 {
		cfg.Server.Port = port
	}
}

// Components holds the long-lived objects built at startup.
type Components struct {
	Store    *storage.SQLiteStore
	Embedder embedding.Embedder
	Index    *vector.MemoryIndex
	Engine   *rag.Engine
	Metrics  *metrics.Metrics
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// initializeComponents builds the embedder and chat model, ingests the
// document, and wires the engine. Any failure here is fatal: the server never
// starts with an empty or partial index.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Metrics: metrics.New()}

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	model, err := llm.New(&cfg.LLM)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}
	idx := indexer.NewIndexer(embedder, chunker, extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
	)
	index, err := ingestDocument(ctx, idx, cfg.Document.Path, newIngestBackOff(), logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to ingest %s: %w", cfg.Document.Path, err)
	}
	c.Index = index
	c.Metrics.SetIndexPassages(index.Size())

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store

	c.Engine = rag.NewEngine(model, embedder, index,
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithSystemTemplate(cfg.Prompt.SystemTemplate),
		rag.WithRephraseInstruction(cfg.Prompt.RephraseInstruction),
	)
	logger.Info("engine ready", zap.String("model", model.Name()), zap.Int("passages", index.Size()))
	return c, nil
}

func newIngestBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// ingestDocument runs one ingestion pass, retrying the whole pass while the
// embedding provider reports rate limiting. Other errors are not retried.
func ingestDocument(ctx context.Context, idx *indexer.Indexer, path string, b backoff.BackOff, logger *zap.Logger) (*vector.MemoryIndex, error) {
	var index *vector.MemoryIndex
	operation := func() error {
		var err error
		index, err = idx.IngestFile(ctx, path)
		if err != nil && !errors.Is(err, models.ErrRateLimited) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("ingestion rate limited, retrying", zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return index, nil
}

// buildQuestion joins all positional args with spaces so multi-word
// questions work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	conversationID := fs.String("conversation", "", "conversation id; reuse it to ask follow-up questions")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	reply, err := askViaHTTP(context.Background(), http.DefaultClient, *serverURL, question, *conversationID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, reply, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(ctx context.Context, client *http.Client, serverURL, question, conversationID string) (*cli.ChatReply, error) {
	body, err := json.Marshal(map[string]string{
		"message":         question,
		"conversation_id": conversationID,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var reply cli.ChatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("server returned %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !reply.Success {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, reply.Message)
	}
	return &reply, nil
}

func runChunks() {
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (chunking settings and default document)")
	chunkSize := fs.Int("chunk-size", 0, "passage size in runes (overrides config)")
	chunkOverlap := fs.Int("chunk-overlap", -1, "overlap in runes (overrides config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae chunks [flags] [document]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	path := cfg.Document.Path
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if path == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	size, overlap := cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap
	if *chunkSize > 0 {
		size = *chunkSize
	}
	if *chunkOverlap >= 0 {
		overlap = *chunkOverlap
	}

	passages, err := chunkDocument(path, size, overlap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chunking failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WritePassages(os.Stdout, passages, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// chunkDocument extracts and chunks path exactly as ingestion would, without
// embedding.
func chunkDocument(path string, size, overlap int) ([]models.Passage, error) {
	chunker, err := indexer.NewChunker(size, overlap)
	if err != nil {
		return nil, err
	}
	pages, err := extract.NewExtractor().ExtractPages(path)
	if err != nil {
		return nil, err
	}
	idx := indexer.NewIndexer(nil, chunker, nil)
	return idx.Chunk(filepath.Base(path), pages), nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	status, err := statusViaHTTP(context.Background(), http.DefaultClient, *serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(ctx context.Context, client *http.Client, serverURL string) (*cli.StatusReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/v1/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var status cli.StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &status, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae init [flags] [path]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	if err := writeStarterConfig(path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

// writeStarterConfig saves the defaults, with environment overrides applied,
// to path. API keys are left out of the file; they stay in the environment.
func writeStarterConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	cfg := config.FromEnv()
	cfg.Embedding.APIKey = ""
	cfg.LLM.APIKey = ""
	return config.Save(path, cfg)
}

func printUsage() {
	fmt.Println(`kotae - Ask questions about a document

Usage:
  kotae server [flags]              Ingest the document and start the HTTP server
  kotae ask [flags] <question>      Ask a running server a question
  kotae chunks [flags] [document]   Print the passages a document is split into
  kotae status [flags]              Show index and conversation status
  kotae init [--force] [path]       Write a starter config.yaml
  kotae version                     Show version
  kotae help                        Show this help

Server Flags:
  --config string     Config file path (default: /usr/local/etc/kotae/config.yaml)
  --document string   Document path (overrides config and KOTAE_DOCUMENT)
  --port int          Listen port (overrides config and PORT)
  --debug             Enable debug logging

Ask Flags:
  --server string        Server URL (default: http://localhost:3000)
  --conversation string  Conversation id; reuse it for follow-up questions
  --output string        Output format: text or json (default: text)

Chunks Flags:
  --config string     Config file path
  --chunk-size int    Passage size in runes (default from config)
  --chunk-overlap int Overlap in runes (default from config)
  --output string     Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:3000)
  --output string    Output format: text or json (default: text)

Environment:
  OPENAI_API_KEY, OLLAMA_URL, OLLAMA_MODEL, LLM_PROVIDER, EMBEDDING_PROVIDER,
  KOTAE_DOCUMENT, PORT (a .env file in the working directory is loaded first)

Examples:
  kotae server --document art_22.pdf
  kotae ask "What does article 22 say about automated decisions?"
  kotae ask --conversation c1 "And what are the exceptions?"
  kotae chunks --output json art_22.pdf`)
}
