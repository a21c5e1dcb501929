package membership

import (
	"sort"
	"sync"
	"time"
)

// Cache tracks which users are currently opted in for speech and when
// each opt-in expires. Expiry is lazy: an entry past its deadline is
// treated as absent at lookup time, no background sweep.
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewCache() *Cache {
	return NewCacheWithClock(time.Now)
}

// NewCacheWithClock injects the clock, used by tests to control expiry.
func NewCacheWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// Refresh inserts the user or extends the existing entry to now+ttl.
// At most one entry per user: a second refresh replaces the expiry.
func (c *Cache) Refresh(userID string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = c.now().Add(ttl)
}

// Revoke removes the entry unconditionally; no-op when absent.
func (c *Cache) Revoke(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// IsActive reports whether the user has a non-expired entry.
func (c *Cache) IsActive(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.entries[userID]
	if !ok {
		return false
	}
	if !c.now().Before(expiresAt) {
		delete(c.entries, userID)
		return false
	}
	return true
}

// Snapshot returns all currently non-expired user ids, sorted for a
// stable persisted representation.
func (c *Cache) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	users := make([]string, 0, len(c.entries))
	for userID, expiresAt := range c.entries {
		if now.Before(expiresAt) {
			users = append(users, userID)
			continue
		}
		delete(c.entries, userID)
	}
	sort.Strings(users)
	return users
}
