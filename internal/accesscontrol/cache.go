package accesscontrol

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheCapacity = 10000
	DefaultCacheTTL      = 5 * time.Minute
)

// Decision is a cached resolver result: either a boolean authorization
// outcome or an enumerated permission set, depending on the key kind.
type Decision struct {
	Allowed     bool
	Permissions []string
}

// Cache is a process-local, bounded, TTL-expiring decision cache. Entries
// older than the TTL are treated as absent; eviction at capacity is LRU.
// There is no cross-process coherence: correctness relies on callers
// invalidating after grant mutations.
type Cache struct {
	entries *lru.LRU[string, Decision]
	ttl     time.Duration

	// userKeys indexes live keys by user id so InvalidateUser does not
	// scan the whole cache. Guarded by mu; the eviction callback keeps
	// it in sync with the LRU.
	mu       sync.Mutex
	userKeys map[int64]map[string]struct{}
	keyOwner map[string]int64

	hits   atomic.Int64
	misses atomic.Int64
}

type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c := &Cache{
		ttl:      ttl,
		userKeys: make(map[int64]map[string]struct{}),
		keyOwner: make(map[string]int64),
	}
	c.entries = lru.NewLRU[string, Decision](capacity, c.onEvict, ttl)
	return c
}

// DecisionKey builds the composite key for a boolean authorization check.
func DecisionKey(userID int64, permission, contextFingerprint string) string {
	return fmt.Sprintf("authz:%d:%s:%s", userID, permission, contextFingerprint)
}

// EnumerationKey builds the key for a full permission enumeration. The
// namespace differs from DecisionKey so the two can never collide.
func EnumerationKey(userID int64, includeGroups bool) string {
	return fmt.Sprintf("perms:%d:groups=%t", userID, includeGroups)
}

func (c *Cache) Get(key string) (Decision, bool) {
	d, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return Decision{}, false
	}
	c.hits.Add(1)
	return d, true
}

func (c *Cache) Put(userID int64, key string, d Decision) {
	// Add may evict and fire onEvict, which takes mu; index afterwards.
	c.entries.Add(key, d)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.userKeys[userID]; !ok {
		c.userKeys[userID] = make(map[string]struct{})
	}
	c.userKeys[userID][key] = struct{}{}
	c.keyOwner[key] = userID
}

func (c *Cache) Invalidate(key string) {
	c.entries.Remove(key)
}

func (c *Cache) InvalidateAll() {
	c.entries.Purge()
}

// InvalidateUser removes every entry whose key was written for the user,
// boolean decisions and enumerations alike.
func (c *Cache) InvalidateUser(userID int64) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.userKeys[userID]))
	for key := range c.userKeys[userID] {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.entries.Remove(key)
	}
}

// InvalidatePermission removes every decision that embeds the permission
// name, for any user. Enumeration entries are cleared wholesale since
// they may contain the permission.
func (c *Cache) InvalidatePermission(permission string) {
	marker := ":" + permission + ":"
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, "perms:") || strings.Contains(key, marker) {
			c.entries.Remove(key)
		}
	}
}

// InvalidateUserPermission removes the user's decisions for one
// permission plus the user's enumeration entries, leaving the user's
// other decisions cached.
func (c *Cache) InvalidateUserPermission(userID int64, permission string) {
	marker := ":" + permission + ":"

	c.mu.Lock()
	keys := make([]string, 0, len(c.userKeys[userID]))
	for key := range c.userKeys[userID] {
		if strings.HasPrefix(key, "perms:") || strings.Contains(key, marker) {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.entries.Remove(key)
	}
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Size:   c.entries.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// TTL reports the staleness bound for cached decisions.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) onEvict(key string, _ Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if userID, ok := c.keyOwner[key]; ok {
		delete(c.keyOwner, key)
		if keys, ok := c.userKeys[userID]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.userKeys, userID)
			}
		}
	}
}
