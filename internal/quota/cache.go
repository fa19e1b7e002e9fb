package quota

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the cache before LRU eviction starts.
const DefaultMaxEntries = 1024

// DefaultTTL applies to operations without an explicit TTL.
const DefaultTTL = 30 * time.Minute

// DefaultTTLs sets per-operation freshness. Prefix rules (trailing dot)
// match operation families.
var DefaultTTLs = map[string]time.Duration{
	"spotify.search":    24 * time.Hour,
	"spotify.artist":    6 * time.Hour,
	"instagram.profile": time.Hour,
	"fetch.":            15 * time.Minute,
}

// CacheStats reports cache effectiveness for the cache command and session
// summaries.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type cacheEntry struct {
	key     string
	value   any
	expires time.Time
}

// Cache is a TTL+LRU map keyed by (operation, canonicalized params).
type Cache struct {
	mu        sync.Mutex
	max       int
	ttls      map[string]time.Duration
	items     map[string]*list.Element
	order     *list.List
	hits      int64
	misses    int64
	evictions int64
	now       func() time.Time
}

// NewCache builds a cache with the default TTL table. A non-positive max
// falls back to [DefaultMaxEntries].
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Cache{
		max:   max,
		ttls:  DefaultTTLs,
		items: make(map[string]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

// Key canonicalizes an operation and its parameters: equal parameter maps
// always produce equal keys regardless of insertion order.
func Key(op string, params map[string]string) string {
	if len(params) == 0 {
		return op
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(op)
	b.WriteByte(':')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}

// Get returns the cached value for (op, params) when present and fresh.
func (c *Cache) Get(op string, params map[string]string) (any, bool) {
	key := Key(op, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expires) {
		c.order.Remove(elem)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Set stores a value under (op, params) with the operation's TTL, evicting
// the least recently used entry when full.
func (c *Cache) Set(op string, params map[string]string, value any) {
	key := Key(op, params)
	expires := c.now().Add(c.ttlFor(op))

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, value: value, expires: expires})

	for len(c.items) > c.max {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
}

// PruneExpired drops every stale entry and returns how many were removed.
func (c *Cache) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*cacheEntry)
		if now.After(entry.expires) {
			c.order.Remove(elem)
			delete(c.items, entry.key)
			removed++
		}
		elem = prev
	}
	return removed
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Entries:   len(c.items),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// ttlFor resolves an operation's TTL: exact match first, then family
// prefixes, then the default.
func (c *Cache) ttlFor(op string) time.Duration {
	if ttl, ok := c.ttls[op]; ok {
		return ttl
	}
	for pattern, ttl := range c.ttls {
		if strings.HasSuffix(pattern, ".") && strings.HasPrefix(op, pattern) {
			return ttl
		}
	}
	return DefaultTTL
}
