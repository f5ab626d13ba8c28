// Package cache implements the persistent cache (component A) shared by the
// three on-disk instances the daemon keeps: full-size originals, sized
// thumbnails, and negative/failure records. Each instance pairs a ristretto
// hot layer in front of a blake3-hashed on-disk layer.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Kind distinguishes the three cache instances named in spec §2/§4.1.
type Kind int

const (
	KindImage Kind = iota
	KindThumb
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindThumb:
		return "thumb"
	case KindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Config configures one Cache instance.
type Config struct {
	Kind     Kind
	Dir      string
	Capacity int64         // disk byte cap passed to DiskCache.MaxSize
	TTL      time.Duration

	// PerEntryCap rejects a Put whose bytes exceed it. Only meaningful for
	// A-image (spec §4.1: "rejects inputs larger than per_entry_cap_image,
	// default ≈ capacity/8"). Zero means unbounded.
	PerEntryCap int64

	ClearOnStartup bool

	// MemoryMaxBytes sizes the ristretto front layer; defaults to
	// Capacity/8 with a 16MB floor if zero.
	MemoryMaxBytes int64
}

// Stats mirrors the {entries, bytes, hits, misses, histogram} tuple spec.md
// §4.1 asks `stats()` to return.
type Stats struct {
	Entries   int
	Bytes     int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Histogram buckets last-access age into power-of-two second ranges:
	// "<1s", "<2s", "<4s", ... "<1024s", "older".
	Histogram map[string]int
}

// Cache is one instance of component A: get/put/contains/invalidate/clear/
// compact/stats, backed by a ristretto hot layer and a blake3-hashed disk
// layer (DiskCache).
type Cache struct {
	kind Kind
	cfg  Config

	mem  *MemoryCache
	disk *DiskCache

	hits   atomic.Uint64
	misses atomic.Uint64

	// keyMu serialises put/get sequencing per key so that a put observed by
	// a later get on the same key always wins (spec §5 ordering guarantee).
	keyMu sync.Mutex
}

// New constructs one cache instance. name is used as the ristretto/disk log
// tag ("image", "thumb", "fail").
func New(cfg Config) (*Cache, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("cache %s: capacity must be positive", cfg.Kind)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.MemoryMaxBytes <= 0 {
		cfg.MemoryMaxBytes = cfg.Capacity / 8
		if cfg.MemoryMaxBytes < 16*1024*1024 {
			cfg.MemoryMaxBytes = 16 * 1024 * 1024
		}
	}

	name := cfg.Kind.String()

	mem, err := NewMemoryCache(MemoryCacheConfig{
		Name:    name,
		MaxSize: cfg.MemoryMaxBytes,
		TTL:     cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}

	disk, err := NewDiskCache(name, cfg.Dir, cfg.TTL, cfg.ClearOnStartup, cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}

	return &Cache{kind: cfg.Kind, cfg: cfg, mem: mem, disk: disk}, nil
}

// Get returns bytes for key. A disk hit promotes the entry to
// most-recently-used and refreshes its last-access time (spec §4.1's LRU
// rule), then backfills the hot layer so the next Get is served from memory.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	if data, ok := c.mem.Get(key); ok {
		c.hits.Add(1)
		return data, true
	}

	data, err := c.disk.Get(key)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	c.mem.Set(key, data, c.cfg.TTL)
	c.hits.Add(1)
	return data, true
}

// Contains reports presence without promoting the entry, per spec §4.1.
func (c *Cache) Contains(key string) bool {
	if _, ok := c.mem.Get(key); ok {
		return true
	}
	return c.disk.Peek(key)
}

// Put admits bytes under key. Returns ErrEntryTooLarge if PerEntryCap is set
// and exceeded (A-image's admission rule); the caller still has its computed
// artifact even when Put fails (spec §4.1 failure mode). The disk layer
// evicts least-recently-used entries synchronously within this call if the
// write pushed it over capacity (spec §8's "≤ capacity after every put").
func (c *Cache) Put(key string, data []byte) error {
	if c.cfg.PerEntryCap > 0 && int64(len(data)) > c.cfg.PerEntryCap {
		return ErrEntryTooLarge
	}

	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	if err := c.disk.Set(key, data); err != nil {
		// Write failures are logged by DiskCache.Set already; degrade to a
		// memory-only admission so at least same-process callers benefit.
		c.mem.Set(key, data, c.cfg.TTL)
		return fmt.Errorf("cache %s: disk write failed: %w", c.kind, err)
	}

	c.mem.Set(key, data, c.cfg.TTL)
	return nil
}

// Invalidate removes key from both layers.
func (c *Cache) Invalidate(key string) error {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	c.mem.Delete(key)
	return c.disk.Delete(key)
}

// Clear empties both layers and resets disk state, leaving the directory
// structure intact (spec §4.1 `clear()`).
func (c *Cache) Clear() error {
	c.mem.Clear()
	return c.disk.Clear()
}

// Compact runs the disk layer's TTL-expiry sweep synchronously and
// returns the resulting entry/byte counts, rather than waiting for the next
// background tick.
func (c *Cache) Compact() (entries int, bytes int64, err error) {
	c.disk.performCleanup()
	return c.disk.CacheStats()
}

// ClearStats zeroes hit/miss/eviction counters without touching entries
// (spec §4.1 `clear_stats` semantics, exposed through the dispatcher).
func (c *Cache) ClearStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.disk.ResetEvictions()
}

// Stats reports {entries, bytes, hits, misses, histogram}. The histogram
// buckets each live entry's age since its last access into power-of-two
// second ranges, per spec §4.1's "power-of-two bucketing of last-access-age".
func (c *Cache) Stats() (Stats, error) {
	entries, size, err := c.disk.CacheStats()
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Entries:   entries,
		Bytes:     size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.disk.Evictions(),
		Histogram: c.ageHistogram(),
	}, nil
}

func (c *Cache) ageHistogram() map[string]int {
	hist := map[string]int{}
	for _, age := range c.disk.AccessAges(time.Now()) {
		hist[bucketLabel(age)]++
	}
	return hist
}

// bucketLabel returns the smallest power-of-two-second bucket that age fits,
// capped at "older" beyond 1024s.
func bucketLabel(age time.Duration) string {
	seconds := age.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	bound := 1.0
	for bound <= 1024 {
		if seconds < bound {
			return fmt.Sprintf("<%ds", int(bound))
		}
		bound *= 2
	}
	return "older"
}
