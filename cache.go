package tablekit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface find results are cached through. Implement it with
// your preferred store (Redis, Memcached, in-memory); MemoryCache is a
// ready-made process-local implementation.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// MemoryCache is an in-process Cache backed by a map. Entries expire lazily
// on read. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	return e.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

var _ Cache = (*MemoryCache)(nil)

// cacheKey derives the cache key of a find statement. Keys are prefixed with
// the table name so any write to the table can drop them in one sweep.
func (s *Service) cacheKey(query string, args []any) string {
	h := sha256.New()
	h.Write([]byte(query))
	fmt.Fprintf(h, "%v", args)
	return s.table + ":find:" + hex.EncodeToString(h.Sum(nil))
}

// cacheLookup reads a cached result set. Cache failures degrade to a miss;
// the cache is best-effort and never fails an operation.
func (s *Service) cacheLookup(ctx context.Context, query string, args []any) ([]Record, bool) {
	raw, err := s.cache.Get(ctx, s.cacheKey(query, args))
	if err != nil || raw == nil {
		return nil, false
	}
	var recs []Record
	if err := msgpack.Unmarshal(raw, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

func (s *Service) cacheStore(ctx context.Context, query string, args []any, recs []Record) {
	raw, err := msgpack.Marshal(recs)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.cacheKey(query, args), raw, s.cacheTTL)
}

// invalidateCache drops every cached result for the table. Called after any
// successful write.
func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.DeletePrefix(ctx, s.table+":")
}
