package config

// Provider names.
const (
	EmbeddingOpenAI = "openai"
	EmbeddingLocal  = "local"
	EmbeddingHash   = "hash"

	LLMOllama = "ollama"
	LLMOpenAI = "openai"
)

const (
	// DefaultTemperature matches the sampling temperature the chat model was tuned with.
	DefaultTemperature = 0.3
	// MaxEmbeddingBatchSize is the remote embedding API's hard cap on inputs per call.
	MaxEmbeddingBatchSize = 2048
)

// ApplyDefaults sets default values for any zero values in cfg.
// A zero chunk_overlap is replaced by the default; set overlap explicitly to
// a positive value to change it.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 500
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 50
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingOpenAI
	}
	switch cfg.Embedding.Provider {
	case EmbeddingOpenAI:
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-large"
		}
		if cfg.Embedding.BatchSize == 0 {
			cfg.Embedding.BatchSize = 512
		}
	case EmbeddingLocal:
		if cfg.Embedding.ModelPath == "" {
			cfg.Embedding.ModelPath = "/usr/local/var/kotae/models/nomic-embed-text-v1.onnx"
		}
		if cfg.Embedding.Dimensions == 0 {
			cfg.Embedding.Dimensions = 768
		}
		if cfg.Embedding.MaxTokens == 0 {
			cfg.Embedding.MaxTokens = 512
		}
	case EmbeddingHash:
		if cfg.Embedding.Dimensions == 0 {
			cfg.Embedding.Dimensions = 256
		}
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = LLMOllama
	}
	if cfg.LLM.Provider == LLMOllama {
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "http://localhost:11434"
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "llama3.2"
		}
		if cfg.LLM.KeepAlive == "" {
			cfg.LLM.KeepAlive = "5m"
		}
	}
	if cfg.LLM.Provider == LLMOpenAI && cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
}
