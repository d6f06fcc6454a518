package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	version   uint64
	expiresAt time.Time
}

// MemoryViewCache is an in-process ViewCache for single-node use.
type MemoryViewCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	versions map[string]uint64
	entries  map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryViewCache(ttl time.Duration) *MemoryViewCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryViewCache{
		ttl:      ttl,
		versions: map[string]uint64{},
		entries:  map[string]memoryEntry{},
		now:      time.Now,
	}
}

func (c *MemoryViewCache) FetchJSON(ctx context.Context, view string, key string, dest any, loader Loader) error {
	if loader == nil {
		return ErrNoLoader
	}
	entryKey := view + ":" + key

	c.mu.Lock()
	version := c.versions[view]
	entry, ok := c.entries[entryKey]
	c.mu.Unlock()
	if ok && entry.version == version && c.now().Before(entry.expiresAt) {
		return json.Unmarshal(entry.payload, dest)
	}

	raw, err := load(ctx, loader)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.versions[view] == version {
		c.entries[entryKey] = memoryEntry{payload: raw, version: version, expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return json.Unmarshal(raw, dest)
}

func (c *MemoryViewCache) Invalidate(_ context.Context, views ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, view := range views {
		c.versions[view]++
	}
	return nil
}
