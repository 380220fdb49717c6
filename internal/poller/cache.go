package poller

import (
	"sync"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// snapshotCache keeps the latest terminal snapshot per monitored stop for a
// short TTL, so overlapping readers and rapid poll cycles reuse one upstream
// answer instead of burning quota. Error snapshots are cached like successes;
// a failing stop is not re-queried until its entry expires.
type snapshotCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snapshot models.StopSnapshot
	storedAt time.Time
}

func newSnapshotCache(ttl time.Duration, clk clock.Clock) *snapshotCache {
	return &snapshotCache{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

// get returns a live entry marked as cached, or reports a miss. Expired
// entries are dropped lazily on access.
func (c *snapshotCache) get(key string) (models.StopSnapshot, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return models.StopSnapshot{}, false
	}
	if c.clock.Since(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.storedAt.Equal(entry.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return models.StopSnapshot{}, false
	}

	snapshot := entry.snapshot
	snapshot.IsCached = true
	return snapshot, true
}

func (c *snapshotCache) put(key string, snapshot models.StopSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{snapshot: snapshot, storedAt: c.clock.Now()}
}

func (c *snapshotCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
