package service

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a retrieval result stays servable. Retrieval
// is re-issued repeatedly for the same question during UI preview, so a
// short TTL absorbs that burst without serving stale indexes for long.
const DefaultCacheTTL = 3 * time.Minute

// RetrievalCache is an in-process TTL cache for retrieval results. It is
// owned by the process wiring and injected into the engine; entries are
// immutable once written and replaced wholesale on recompute.
type RetrievalCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	result    *RetrievalResult
	createdAt time.Time
}

func NewRetrievalCache(ttl time.Duration) *RetrievalCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RetrievalCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a non-expired entry for key.
func (c *RetrievalCache) Get(key string) (*RetrievalResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.createdAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.result, true
}

// Set stores a result under key, replacing any previous entry.
func (c *RetrievalCache) Set(key string, result *RetrievalResult) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, createdAt: c.now()}
	c.mu.Unlock()
}

// Clear drops all entries. Called when tenant settings change, since
// cached results embed settings-dependent ordering.
func (c *RetrievalCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *RetrievalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cacheKey builds the lookup key from the normalized query and the
// request shape.
func cacheKey(tenantID, query string, k int, useRerank bool) string {
	return fmt.Sprintf("%s|%s|%d|%t", tenantID, normalizeQuery(query), k, useRerank)
}

// normalizeQuery trims, lowercases and collapses whitespace so trivially
// different phrasings of the same question share a cache entry.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
