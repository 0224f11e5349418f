package loader

import (
	"sync"
	"time"
)

// delegate is one resolved invocation handle. Handles are opaque to the
// runtime: they are indexed and invalidated here, never dereferenced.
type delegate struct {
	handle   uint64
	created  time.Time
	lastUsed time.Time
}

// DelegateCache caches resolved invocation handles keyed by
// (module hash, method signature). Handles are scoped to a module hash and
// are invalidated en masse when that hash is evicted or hot-swapped; they
// are never reused across module versions, even for identical signatures,
// because a handle may reference freed native resources.
type DelegateCache struct {
	mu      sync.RWMutex
	modules map[string]map[string]*delegate // hash -> signature -> entry
}

// NewDelegateCache creates an empty delegate cache.
func NewDelegateCache() *DelegateCache {
	return &DelegateCache{
		modules: make(map[string]map[string]*delegate),
	}
}

// Get returns the cached handle for (hash, signature), bumping its
// last-used time.
func (c *DelegateCache) Get(moduleHash, signature string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.modules[moduleHash][signature]
	if !ok {
		return 0, false
	}
	d.lastUsed = time.Now()
	return d.handle, true
}

// Put caches a handle for (hash, signature), overwriting any previous
// handle for the pair.
func (c *DelegateCache) Put(moduleHash, signature string, handle uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sigs := c.modules[moduleHash]
	if sigs == nil {
		sigs = make(map[string]*delegate)
		c.modules[moduleHash] = sigs
	}
	now := time.Now()
	sigs[signature] = &delegate{handle: handle, created: now, lastUsed: now}
}

// InvalidateModule drops every handle for a module hash and returns how
// many were removed. The hot-swap protocol calls this in the same critical
// section that removes the module's cache entry.
func (c *DelegateCache) InvalidateModule(moduleHash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.modules[moduleHash])
	delete(c.modules, moduleHash)
	return n
}

// Size sums cached handles across all modules.
func (c *DelegateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, sigs := range c.modules {
		total += len(sigs)
	}
	return total
}

// SizeFor returns the number of handles cached for one module hash.
func (c *DelegateCache) SizeFor(moduleHash string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules[moduleHash])
}

// Sweep removes handles not used within the TTL and returns how many were
// dropped. Module entries left empty are removed entirely.
func (c *DelegateCache) Sweep(ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for hash, sigs := range c.modules {
		for sig, d := range sigs {
			if d.lastUsed.Before(cutoff) {
				delete(sigs, sig)
				removed++
			}
		}
		if len(sigs) == 0 {
			delete(c.modules, hash)
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background. Returns a stop
// function.
func (c *DelegateCache) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				c.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
