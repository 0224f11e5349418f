package modcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("modrun.modcache")

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the cache; 0 means unbounded. When a Put pushes the
	// cache over the bound, least-recently-used entries are evicted.
	MaxEntries int

	// Store is the optional persistent backing store. Persist and Restore
	// fail with ErrNotConfigured when it is nil.
	Store Store

	// Metrics, when non-nil, mirrors cache counters to prometheus.
	Metrics *Metrics
}

// Stats is a snapshot of cache counters. HitRate is hits/(hits+misses),
// 0 when no lookups have occurred.
type Stats struct {
	Entries   int
	TotalSize int64
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
	HotSwaps  uint64
}

// Cache is the content-addressed module store. Reads take a shared lock;
// mutations are serialized. The cache owns the Data of every entry it
// holds; load contexts reference entries by id only.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CachedModule
	seq     map[string]uint64 // insertion order, breaks LRU ties
	nextSeq uint64

	opts Options

	hits      uint64
	misses    uint64
	evictions uint64
	hotSwaps  uint64
}

// New creates a cache.
func New(opts Options) *Cache {
	return &Cache{
		entries: make(map[string]*CachedModule),
		seq:     make(map[string]uint64),
		opts:    opts,
	}
}

// Put inserts a module, deduplicating by hash: a second Put of the same
// content refreshes the existing entry's metadata instead of duplicating
// it. Exceeding MaxEntries evicts least-recently-used entries.
func (c *Cache) Put(m *CachedModule) {
	if m.Hash == "" {
		m.Hash = HashPayload(m.Data)
	}
	if m.Size == 0 {
		m.Size = len(m.Data)
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = now
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[m.Hash]; !exists {
		c.nextSeq++
		c.seq[m.Hash] = c.nextSeq
	}
	c.entries[m.Hash] = m

	if c.opts.MaxEntries > 0 && len(c.entries) > c.opts.MaxEntries {
		c.evictLocked(len(c.entries) - c.opts.MaxEntries)
	}
}

// Get returns the module for a content hash, bumping its LastAccessedAt
// and AccessCount.
func (c *Cache) Get(hash string) (*CachedModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[hash]
	if !ok {
		c.miss()
		return nil, false
	}
	c.hit()
	m.LastAccessedAt = time.Now()
	m.AccessCount++
	return m, true
}

// Has reports presence without touching access metadata or hit counters.
func (c *Cache) Has(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[hash]
	return ok
}

// GetByName scans the secondary (name, version) index. With no version it
// returns the most recently inserted entry for the name, so lookups after
// a hot-swap observe the new module. The scan is linear; cache sizes are
// bounded by MaxEntries.
func (c *Cache) GetByName(name string, version ...string) (*CachedModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := ""
	if len(version) > 0 {
		v = version[0]
	}
	best := c.newestByNameLocked(name, v)
	if best == nil {
		c.miss()
		return nil, false
	}
	c.hit()
	best.LastAccessedAt = time.Now()
	best.AccessCount++
	return best, true
}

// PeekByName is GetByName without the bookkeeping: no hit or miss is
// counted and access metadata stays untouched. The hot-swap protocol uses
// it so swap lookups do not distort the hit rate the deploy pipeline
// watches.
func (c *Cache) PeekByName(name string) (*CachedModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	best := c.newestByNameLocked(name, "")
	return best, best != nil
}

// newestByNameLocked returns the most recently inserted entry matching
// name (and version, when non-empty). Caller holds a lock.
func (c *Cache) newestByNameLocked(name, version string) *CachedModule {
	var best *CachedModule
	for hash, m := range c.entries {
		if m.Name != name {
			continue
		}
		if version != "" && m.Version != version {
			continue
		}
		if best == nil || c.seq[hash] > c.seq[best.Hash] {
			best = m
		}
	}
	return best
}

// GetVersions returns the cached versions for a name, newest first (semver
// order where the versions parse, lexical otherwise). Deploy tooling uses
// this for rollback: replay an older entry's Data through Put/Load.
func (c *Cache) GetVersions(name string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var versions []string
	for _, m := range c.entries {
		if m.Name == name {
			versions = append(versions, m.Version)
		}
	}
	sortVersionsDesc(versions)
	return versions
}

// Remove deletes the entry for a hash. Returns false when absent.
func (c *Cache) Remove(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(hash)
}

// Clear drops every entry. Counters are monotonic and survive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CachedModule)
	c.seq = make(map[string]uint64)
}

// EvictLRU removes up to count entries with the oldest LastAccessedAt,
// ties broken by insertion order. Returns the number actually evicted.
func (c *Cache) EvictLRU(count int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(count)
}

// RecordHotSwap counts a completed hot-swap. Called by the swap protocol
// after the new entry is installed.
func (c *Cache) RecordHotSwap() {
	c.mu.Lock()
	c.hotSwaps++
	c.mu.Unlock()
	if c.opts.Metrics != nil {
		c.opts.Metrics.HotSwaps.Inc()
	}
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HotSwaps:  c.hotSwaps,
	}
	for _, m := range c.entries {
		s.TotalSize += int64(m.Size)
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Persist writes every cached entry to the backing store.
func (c *Cache) Persist(ctx context.Context) error {
	if c.opts.Store == nil {
		return ErrNotConfigured
	}
	c.mu.RLock()
	modules := make([]*CachedModule, 0, len(c.entries))
	for _, m := range c.entries {
		modules = append(modules, m)
	}
	c.mu.RUnlock()

	for _, m := range modules {
		if err := c.opts.Store.Save(ctx, m); err != nil {
			return fmt.Errorf("modcache: persisting %s: %w", m.Hash, err)
		}
	}
	log.Infof("persisted %d modules", len(modules))
	return nil
}

// Restore loads every stored entry back into the cache. MaxEntries still
// applies, so restoring more modules than the bound evicts the least
// recently used of the restored set.
func (c *Cache) Restore(ctx context.Context) error {
	if c.opts.Store == nil {
		return ErrNotConfigured
	}
	hashes, err := c.opts.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("modcache: listing store: %w", err)
	}
	for _, hash := range hashes {
		m, err := c.opts.Store.Load(ctx, hash)
		if err != nil {
			return fmt.Errorf("modcache: restoring %s: %w", hash, err)
		}
		c.Put(m)
	}
	log.Infof("restored %d modules", len(hashes))
	return nil
}

// evictLocked removes the count least-recently-used entries. Caller holds
// the write lock.
func (c *Cache) evictLocked(count int) int {
	if count <= 0 || len(c.entries) == 0 {
		return 0
	}
	type victim struct {
		hash     string
		accessed time.Time
		seq      uint64
	}
	candidates := make([]victim, 0, len(c.entries))
	for hash, m := range c.entries {
		candidates = append(candidates, victim{hash, m.LastAccessedAt, c.seq[hash]})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].accessed.Equal(candidates[j].accessed) {
			return candidates[i].accessed.Before(candidates[j].accessed)
		}
		return candidates[i].seq < candidates[j].seq
	})
	if count > len(candidates) {
		count = len(candidates)
	}
	evicted := 0
	for _, v := range candidates[:count] {
		if c.removeLocked(v.hash) {
			c.evictions++
			evicted++
			if c.opts.Metrics != nil {
				c.opts.Metrics.Evictions.Inc()
			}
			log.Debugf("evicted module %s", v.hash)
		}
	}
	return evicted
}

func (c *Cache) removeLocked(hash string) bool {
	if _, ok := c.entries[hash]; !ok {
		return false
	}
	delete(c.entries, hash)
	delete(c.seq, hash)
	return true
}

func (c *Cache) hit() {
	c.hits++
	if c.opts.Metrics != nil {
		c.opts.Metrics.Hits.Inc()
	}
}

func (c *Cache) miss() {
	c.misses++
	if c.opts.Metrics != nil {
		c.opts.Metrics.Misses.Inc()
	}
}
