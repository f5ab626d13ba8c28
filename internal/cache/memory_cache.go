package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// MemoryCache is the ristretto-backed hot layer Cache keeps in front of its
// blake3-hashed disk layer. Hit/miss accounting lives in Cache's own atomic
// counters (spec §4.1's stats tuple), so ristretto's own Metrics surface is
// left disabled here rather than carried as unused API.
type MemoryCache struct {
	cache *ristretto.Cache
	name  string
}

// MemoryCacheConfig defines configuration for the memory cache.
type MemoryCacheConfig struct {
	Name        string        // Cache name for logging
	MaxSize     int64         // Max memory in bytes
	MaxItems    int64         // Max number of items (optional)
	BufferItems int64         // Internal buffer size (10x MaxItems recommended)
	TTL         time.Duration // Default time to live for entries
}

// NewMemoryCache creates a new in-memory cache with the given configuration.
func NewMemoryCache(cfg MemoryCacheConfig) (*MemoryCache, error) {
	if cfg.MaxSize == 0 {
		return nil, fmt.Errorf("MaxSize must be specified for memory cache")
	}

	if cfg.MaxItems == 0 {
		// Estimate: assume average item is ~100KB
		cfg.MaxItems = cfg.MaxSize / (100 * 1024)
		if cfg.MaxItems < 100 {
			cfg.MaxItems = 100
		}
	}

	if cfg.BufferItems == 0 {
		cfg.BufferItems = cfg.MaxItems * 10
		if cfg.BufferItems < 1000 {
			cfg.BufferItems = 1000
		}
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.BufferItems,
		MaxCost:     cfg.MaxSize,
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item) {
			if cfg.Name != "" {
				logger.Debugf("[MemoryCache:%s] Evicted item (cost: %d bytes)", cfg.Name, item.Cost)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	logger.Infof("[MemoryCache:%s] Initialized: MaxSize=%dMB, MaxItems=%d",
		cfg.Name, cfg.MaxSize/(1024*1024), cfg.MaxItems)

	return &MemoryCache{
		cache: cache,
		name:  cfg.Name,
	}, nil
}

// Get retrieves a value from the cache. Returns (data, found).
func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	value, found := mc.cache.Get(key)
	if !found {
		return nil, false
	}

	data, ok := value.([]byte)
	if !ok {
		logger.Warnf("[MemoryCache:%s] Invalid data type for key: %s", mc.name, key)
		return nil, false
	}

	return data, true
}

// Set stores a value in the cache with the specified TTL. Returns true if
// the value was admitted (ristretto may reject under buffer pressure).
func (mc *MemoryCache) Set(key string, data []byte, ttl time.Duration) bool {
	cost := int64(len(data))
	success := mc.cache.SetWithTTL(key, data, cost, ttl)
	if !success {
		logger.Warnf("[MemoryCache:%s] Set rejected for key: %s (buffer full)", mc.name, key)
	}
	return success
}

// Delete removes a key from the cache.
func (mc *MemoryCache) Delete(key string) {
	mc.cache.Del(key)
}

// Clear removes all entries from the cache.
func (mc *MemoryCache) Clear() {
	mc.cache.Clear()
}
