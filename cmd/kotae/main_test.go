package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvOpenAIKey, config.EnvOllamaURL, config.EnvOllamaModel, config.EnvLLMProvider,
		config.EnvEmbeddingProvider, config.EnvDocument, config.EnvPort,
	} {
		t.Setenv(k, "")
	}
}

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is article 22", "-conversation", "c1"},
			expected: []string{"-conversation", "c1", "what is article 22"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-conversation", "c1", "what is article 22"},
			expected: []string{"-conversation", "c1", "what is article 22"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is article 22"},
			expected: []string{"what is article 22"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-output", "json"},
			expected: []string{"-output", "json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"why"}, "why"},
		{"multiple words", []string{"what", "color?"}, "what color?"},
		{"single quoted phrase", []string{"what color?"}, "what color?"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 8080
document:
  path: "./art_22.pdf"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Server.Port != 8080 {
		t.Errorf("unexpected config: debug=%v port=%d", cfg.Debug, cfg.Server.Port)
	}
	if filepath.Base(cfg.Document.Path) != "art_22.pdf" || !filepath.IsAbs(cfg.Document.Path) {
		t.Errorf("document path = %q, want absolute path to art_22.pdf", cfg.Document.Path)
	}
}

func TestLoadConfig_envOnlyWhenNoFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvPort, "4000")
	t.Chdir(t.TempDir())
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("default config file exists on this machine")
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty", resolved)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Chunking.ChunkSize != 500 {
		t.Errorf("defaults not applied: chunk size %d", cfg.Chunking.ChunkSize)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "kotae.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestApplyServerFlags(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 3000
	cfg.Document.Path = "/docs/a.pdf"

	applyServerFlags(cfg, "", 0)
	if cfg.Server.Port != 3000 || cfg.Document.Path != "/docs/a.pdf" {
		t.Errorf("empty flags changed config: %+v", cfg)
	}
	applyServerFlags(cfg, "b.pdf", 8081)
	if cfg.Server.Port != 8081 {
		t.Errorf("port = %d, want 8081", cfg.Server.Port)
	}
	if !filepath.IsAbs(cfg.Document.Path) || filepath.Base(cfg.Document.Path) != "b.pdf" {
		t.Errorf("document = %q, want absolute b.pdf", cfg.Document.Path)
	}
}

// flakyEmbedder fails the first failures batch calls with err.
type flakyEmbedder struct {
	embedding.Embedder
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	return f.Embedder.EmbedBatch(ctx, texts)
}

func writeDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("The sky is blue.\n\nGrass is green."), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestIndexer(t *testing.T, e embedding.Embedder) *indexer.Indexer {
	t.Helper()
	chunker, err := indexer.NewChunker(500, 50)
	if err != nil {
		t.Fatal(err)
	}
	return indexer.NewIndexer(e, chunker, extract.NewExtractor())
}

func fastBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
}

func TestIngestDocument_retriesRateLimit(t *testing.T) {
	e := &flakyEmbedder{
		Embedder: embedding.NewHashEmbedder(64),
		failures: 2,
		err:      fmt.Errorf("openai embeddings: %w", models.ErrRateLimited),
	}
	index, err := ingestDocument(context.Background(), newTestIndexer(t, e), writeDocument(t), fastBackOff(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if index.Size() != 1 {
		t.Errorf("index size = %d, want 1", index.Size())
	}
	if got := e.calls.Load(); got != 3 {
		t.Errorf("embed calls = %d, want 3", got)
	}
}

func TestIngestDocument_permanentError(t *testing.T) {
	e := &flakyEmbedder{
		Embedder: embedding.NewHashEmbedder(64),
		failures: 10,
		err:      fmt.Errorf("openai embeddings: %w", models.ErrProviderUnavailable),
	}
	index, err := ingestDocument(context.Background(), newTestIndexer(t, e), writeDocument(t), fastBackOff(), zap.NewNop())
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
	if index != nil {
		t.Error("expected nil index on failure")
	}
	if got := e.calls.Load(); got != 1 {
		t.Errorf("embed calls = %d, want 1", got)
	}
}

func TestIngestDocument_givesUpAfterRetries(t *testing.T) {
	e := &flakyEmbedder{
		Embedder: embedding.NewHashEmbedder(64),
		failures: 100,
		err:      models.ErrRateLimited,
	}
	_, err := ingestDocument(context.Background(), newTestIndexer(t, e), writeDocument(t), fastBackOff(), zap.NewNop())
	if !errors.Is(err, models.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
	if got := e.calls.Load(); got != 6 {
		t.Errorf("embed calls = %d, want 6", got)
	}
}

func TestChunkDocument(t *testing.T) {
	passages, err := chunkDocument(writeDocument(t), 20, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(passages) < 2 {
		t.Fatalf("passages = %d, want at least 2", len(passages))
	}
	for _, p := range passages {
		if p.Metadata[models.MetaSource] != "doc.txt" {
			t.Errorf("source = %q, want doc.txt", p.Metadata[models.MetaSource])
		}
		if n := len([]rune(p.Text)); n > 20 {
			t.Errorf("passage has %d runes, want <= 20", n)
		}
	}

	if _, err := chunkDocument(writeDocument(t), 20, 20); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("overlap == size: err = %v, want ErrInvalidInput", err)
	}
}

func TestAskViaHTTP(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got["message"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid request"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"answer":"Blue.","conversation_id":"c1"}`))
	}))
	defer ts.Close()

	reply, err := askViaHTTP(context.Background(), ts.Client(), ts.URL+"/", "What color is the sky?", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Answer != "Blue." || reply.ConversationID != "c1" {
		t.Errorf("reply = %+v", reply)
	}
	if got["message"] != "What color is the sky?" || got["conversation_id"] != "c1" {
		t.Errorf("request body = %v", got)
	}

	_, err = askViaHTTP(context.Background(), ts.Client(), ts.URL, "", "")
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "Invalid request") {
		t.Errorf("err = %v, want 400 Invalid request", err)
	}
}

func TestStatusViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"index":{"passages":7,"dimensions":256},"model":"ollama/llama3.2","conversations":1,"messages":2}`))
	}))
	defer ts.Close()

	status, err := statusViaHTTP(context.Background(), ts.Client(), ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if status.Index.Passages != 7 || status.Index.Dimensions != 256 || status.Model != "ollama/llama3.2" {
		t.Errorf("status = %+v", status)
	}

	if _, err := statusViaHTTP(context.Background(), ts.Client(), ts.URL+"/nope"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestWriteStarterConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvOpenAIKey, "sk-secret")
	t.Setenv(config.EnvOllamaModel, "mistral")
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	if err := writeStarterConfig(path, false); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("API key should not be written to the config file")
	}

	clearEnv(t)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Model != "mistral" {
		t.Errorf("LLM.Model = %q, want mistral", cfg.LLM.Model)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Retrieval.TopK != 4 {
		t.Errorf("defaults not written: chunk_size=%d top_k=%d", cfg.Chunking.ChunkSize, cfg.Retrieval.TopK)
	}

	if err := writeStarterConfig(path, false); err == nil {
		t.Error("expected error when config already exists")
	}
	if err := writeStarterConfig(path, true); err != nil {
		t.Errorf("force overwrite: %v", err)
	}
}
