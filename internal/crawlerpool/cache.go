package crawlerpool

import (
	"sync"
	"time"

	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

// Cache stores successfully extracted records keyed by normalized WO
// number. Failed records are never cached; the caller retries them on the
// next request.
type Cache interface {
	Get(woNumber string) (wipo.PatentRecord, bool)
	Put(woNumber string, rec wipo.PatentRecord)
	Len() int
}

type cacheEntry struct {
	rec      wipo.PatentRecord
	storedAt time.Time
}

// MemoryCache is an in-process cache with an optional TTL. A zero TTL
// means entries never expire.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration

	now func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: map[string]cacheEntry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(woNumber string) (wipo.PatentRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[woNumber]
	if !ok {
		return wipo.PatentRecord{}, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, woNumber)
		return wipo.PatentRecord{}, false
	}
	return entry.rec, true
}

func (c *MemoryCache) Put(woNumber string, rec wipo.PatentRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[woNumber] = cacheEntry{rec: rec, storedAt: c.now()}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// put with an explicit timestamp, used when reloading persisted entries.
func (c *MemoryCache) putAt(woNumber string, rec wipo.PatentRecord, storedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[woNumber] = cacheEntry{rec: rec, storedAt: storedAt}
}

var _ Cache = (*MemoryCache)(nil)
