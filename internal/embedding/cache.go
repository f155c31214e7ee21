package embedding

import (
	lru "github.com/hashicorp/golang-lru"
)

// EmbeddingCache is a thread-safe LRU cache for embeddings keyed by text.
// A capacity of zero or less disables caching.
type EmbeddingCache struct {
	lru *lru.Cache
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		return &EmbeddingCache{}
	}
	c, err := lru.New(capacity)
	if err != nil {
		return &EmbeddingCache{}
	}
	return &EmbeddingCache{lru: c}
}

// Get returns a copy of the cached embedding for key if present and marks it
// recently used.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	if c.lru == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v.([]float32)...), true
}

// Set stores a copy of the embedding for key, evicting the least recently used
// entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, append([]float32(nil), value...))
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
