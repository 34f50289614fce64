package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/patron/id"
)

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	result  Result
	viewer  string
	post    string
	expires time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock creates an empty MemoryCache that expires entries
// against now.
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

func cacheKey(viewerID id.ProfileID, postID id.PostID) string {
	return viewerID.String() + ":" + postID.String()
}

func (c *MemoryCache) Get(_ context.Context, viewerID id.ProfileID, postID id.PostID) (*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[cacheKey(viewerID, postID)]
	if !ok || !c.now().Before(e.expires) {
		return nil, ErrCacheMiss
	}
	r := e.result
	return &r, nil
}

func (c *MemoryCache) Set(_ context.Context, result *Result, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(result.ViewerID, result.PostID)] = memoryEntry{
		result:  *result,
		viewer:  result.ViewerID.String(),
		post:    result.PostID.String(),
		expires: c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) InvalidateViewer(_ context.Context, viewerID id.ProfileID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := viewerID.String()
	for k, e := range c.entries {
		if e.viewer == v {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *MemoryCache) InvalidatePost(_ context.Context, postID id.PostID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := postID.String()
	for k, e := range c.entries {
		if e.post == p {
			delete(c.entries, k)
		}
	}
	return nil
}
