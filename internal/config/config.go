// Package config provides configuration loading, defaults, and validation for the kotae server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Document  DocumentConfig  `yaml:"document"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DocumentConfig names the single document answered over.
type DocumentConfig struct {
	Path string `yaml:"path"`
}

// ChunkingConfig holds passage splitting settings, in runes.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig selects and configures the embedding provider.
// Provider is one of "openai", "local" (ONNX), or "hash".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	BatchSize  int    `yaml:"batch_size"`
	Dimensions int    `yaml:"dimensions"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig configures the chat model. Provider is "ollama" or "openai".
type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	APIKey      string   `yaml:"api_key"`
	KeepAlive   string   `yaml:"keep_alive"`
}

// TemperatureOrDefault returns the configured temperature, or DefaultTemperature when unset.
func (l *LLMConfig) TemperatureOrDefault() float64 {
	if l.Temperature != nil {
		return *l.Temperature
	}
	return DefaultTemperature
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// PromptConfig overrides the built-in prompts. Empty values keep the defaults.
// SystemTemplate must contain the {context} placeholder.
type PromptConfig struct {
	SystemTemplate      string `yaml:"system_template"`
	RephraseInstruction string `yaml:"rephrase_instruction"`
}

// StorageConfig holds the conversation transcript database path.
// An empty path keeps transcripts in memory for the life of the process.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	cfg.Document.Path = expandPath(cfg.Document.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	ApplyEnv(&cfg, os.LookupEnv)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// FromEnv builds a config from defaults and environment variables only.
func FromEnv() *Config {
	var cfg Config
	ApplyEnv(&cfg, os.LookupEnv)
	ApplyDefaults(&cfg)
	return &cfg
}

// Environment variables that override file values when set.
const (
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvOllamaURL         = "OLLAMA_URL"
	EnvOllamaModel       = "OLLAMA_MODEL"
	EnvLLMProvider       = "LLM_PROVIDER"
	EnvEmbeddingProvider = "EMBEDDING_PROVIDER"
	EnvDocument          = "KOTAE_DOCUMENT"
	EnvPort              = "PORT"
)

// ApplyEnv overrides cfg with any environment variables lookup reports as set.
// OPENAI_API_KEY applies to both the embedding and chat model settings.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOpenAIKey); ok && v != "" {
		cfg.Embedding.APIKey = v
		cfg.LLM.APIKey = v
	}
	if v, ok := lookup(EnvOllamaURL); ok && v != "" {
		cfg.LLM.BaseURL = v
	}
	if v, ok := lookup(EnvOllamaModel); ok && v != "" {
		cfg.LLM.Model = v
	}
	if v, ok := lookup(EnvLLMProvider); ok && v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v, ok := lookup(EnvEmbeddingProvider); ok && v != "" {
		cfg.Embedding.Provider = strings.ToLower(v)
	}
	if v, ok := lookup(EnvDocument); ok && v != "" {
		if abs, err := filepath.Abs(v); err == nil {
			v = abs
		}
		cfg.Document.Path = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// Validate checks the configuration once at startup so that bad settings
// never surface mid-request. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Document.Path == "" {
		errs = append(errs, errors.New("document.path is required"))
	}
	if c.Chunking.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize))
	} else if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking.chunk_overlap must be in [0, %d), got %d", c.Chunking.ChunkSize, c.Chunking.ChunkOverlap))
	}
	switch c.Embedding.Provider {
	case EmbeddingOpenAI:
		if c.Embedding.APIKey == "" {
			errs = append(errs, fmt.Errorf("embedding.api_key (or %s) is required for the openai provider", EnvOpenAIKey))
		}
		if c.Embedding.BatchSize < 1 || c.Embedding.BatchSize > MaxEmbeddingBatchSize {
			errs = append(errs, fmt.Errorf("embedding.batch_size must be in [1, %d], got %d", MaxEmbeddingBatchSize, c.Embedding.BatchSize))
		}
		if c.Embedding.BaseURL != "" {
			if err := validateURL(c.Embedding.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("embedding.base_url: %w", err))
			}
		}
	case EmbeddingLocal:
		if c.Embedding.ModelPath == "" {
			errs = append(errs, errors.New("embedding.model_path is required for the local provider"))
		}
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, errors.New("embedding.dimensions must be positive for the local provider"))
		}
	case EmbeddingHash:
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, errors.New("embedding.dimensions must be positive for the hash provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q (supported: openai, local, hash)", c.Embedding.Provider))
	}
	switch c.LLM.Provider {
	case LLMOllama:
	case LLMOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm.api_key (or %s) is required for the openai provider", EnvOpenAIKey))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q (supported: ollama, openai)", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.BaseURL != "" {
		if err := validateURL(c.LLM.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("llm.base_url: %w", err))
		}
	}
	if t := c.LLM.TemperatureOrDefault(); t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be in [0, 2], got %g", t))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK))
	}
	if c.Prompt.SystemTemplate != "" && !strings.Contains(c.Prompt.SystemTemplate, "{context}") {
		errs = append(errs, errors.New("prompt.system_template must contain {context}"))
	}
	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is empty")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
