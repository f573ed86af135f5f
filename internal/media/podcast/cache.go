package podcast

import (
	"sync"
	"time"

	"github.com/medley-server/medley/internal/media"
)

// Cache holds fully-built podcast entry nodes keyed by feed URL, bounded by
// entry count and a TTL measured from insertion. Expiry and eviction are
// checked lazily on access and during CleanUp; there is no background
// goroutine.
type Cache struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	nodes      []media.Node
	insertedAt time.Time
}

// NewCache creates a podcast cache holding at most maxEntries feeds, each
// expiring ttl after insertion.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[string]*cacheEntry),
	}
}

// Get returns the cached nodes for feedURL. An entry past its TTL is dropped
// and reported as a miss, which makes the caller re-fetch the feed. The
// result is a copy: callers sort and slice their listings freely while other
// readers hold the same entry.
func (c *Cache) Get(feedURL string) ([]media.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[feedURL]
	if !ok {
		return nil, false
	}
	if c.expired(entry) {
		delete(c.entries, feedURL)
		return nil, false
	}
	nodes := make([]media.Node, len(entry.nodes))
	copy(nodes, entry.nodes)
	return nodes, true
}

// Put stores nodes under feedURL, evicting the oldest insertion when the
// cache is full. An empty slice is a valid value: failed fetches are cached
// as empty until the TTL retries them. The entry keeps its own copy so the
// caller's slice stays private to its request.
func (c *Cache) Put(feedURL string, nodes []media.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[feedURL]; !ok {
		for len(c.entries) >= c.maxEntries {
			if !c.evictOldest() {
				break
			}
		}
	}
	stored := make([]media.Node, len(nodes))
	copy(stored, nodes)
	c.entries[feedURL] = &cacheEntry{nodes: stored, insertedAt: c.now()}
}

// CleanUp drops every expired entry.
func (c *Cache) CleanUp() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for url, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, url)
		}
	}
}

// Len returns the number of cached feeds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expired(entry *cacheEntry) bool {
	return !c.now().Before(entry.insertedAt.Add(c.ttl))
}

// evictOldest removes the entry with the oldest insertion time. Must be
// called with the lock held.
func (c *Cache) evictOldest() bool {
	var oldestURL string
	var oldest *cacheEntry
	for url, entry := range c.entries {
		if oldest == nil || entry.insertedAt.Before(oldest.insertedAt) {
			oldest = entry
			oldestURL = url
		}
	}
	if oldest == nil {
		return false
	}
	delete(c.entries, oldestURL)
	return true
}
