package loader

import (
	"sync"
	"time"

	"github.com/calyx-run/modrun/modcache"
)

// SwapResult reports the outcome of a hot-swap.
type SwapResult struct {
	Success              bool
	ModuleName           string
	PreviousVersion      string
	NewVersion           string
	SwapTime             time.Duration
	DelegatesInvalidated int

	// RetiredContextID is the old module's context, retained until an
	// explicit Unload once in-flight calls drain. Empty on a first deploy.
	RetiredContextID string

	Err error
}

// Swapper binds the module cache, context manager, and delegate cache into
// the hot-swap protocol. Swaps for the same module name are serialized by a
// per-name lock; swaps for unrelated names do not contend.
type Swapper struct {
	cache     *modcache.Cache
	manager   *Manager
	delegates *DelegateCache

	mu    sync.Mutex
	names map[string]*sync.Mutex
}

// NewSwapper creates a swapper over the given cache, manager, and delegate
// cache.
func NewSwapper(cache *modcache.Cache, manager *Manager, delegates *DelegateCache) *Swapper {
	return &Swapper{
		cache:     cache,
		manager:   manager,
		delegates: delegates,
		names:     make(map[string]*sync.Mutex),
	}
}

// Install loads a payload as a new module under name, without retiring
// anything. It is the first-deploy path and the second half of HotSwap.
func (s *Swapper) Install(name, version string, payload []byte) (*modcache.CachedModule, error) {
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()
	return s.installLocked(name, version, payload)
}

// HotSwap replaces the active module for name with a new payload.
//
// The payload is validated before any existing state is touched, so a bad
// payload leaves the previous module cached and serving. On success the old
// entry's delegate handles are invalidated and its cache entry removed in
// one critical section, so no stale handle is servable after the old module
// is logically gone. The old context is retired, not unloaded:
// in-flight calls finish against the old binary, while any lookup for name
// that starts after HotSwap returns resolves to the new hash.
func (s *Swapper) HotSwap(name string, payload []byte, newVersion string) SwapResult {
	start := time.Now()
	result := SwapResult{ModuleName: name, NewVersion: newVersion}

	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	// Validate before retiring anything.
	if err := ValidatePayload(payload); err != nil {
		log.Warningf("hot-swap of %s to %s rejected: %v", name, newVersion, err)
		result.Err = err
		result.SwapTime = time.Since(start)
		return result
	}

	// Retire the existing module, if any: delegate invalidation and cache
	// removal happen back-to-back under the name lock. Peek rather than
	// Get: swap bookkeeping must not count as a cache lookup.
	if old, ok := s.cache.PeekByName(name); ok {
		result.PreviousVersion = old.Version
		result.DelegatesInvalidated = s.delegates.InvalidateModule(old.Hash)
		s.cache.Remove(old.Hash)
		s.manager.Retire(old.ContextID)
		result.RetiredContextID = old.ContextID
	}

	m, err := s.installLocked(name, newVersion, payload)
	if err != nil {
		result.Err = err
		result.SwapTime = time.Since(start)
		return result
	}

	s.cache.RecordHotSwap()
	result.Success = true
	result.SwapTime = time.Since(start)
	log.Infof("hot-swapped %s %s -> %s (hash %s, %d delegates invalidated)",
		name, result.PreviousVersion, newVersion, m.Hash, result.DelegatesInvalidated)
	return result
}

// installLocked creates a context, loads the payload, and caches the
// module. Caller holds the name lock.
func (s *Swapper) installLocked(name, version string, payload []byte) (*modcache.CachedModule, error) {
	contextID := s.manager.Create(name)
	if _, err := s.manager.Load(contextID, payload); err != nil {
		s.manager.Unload(contextID)
		return nil, err
	}
	m := modcache.NewCachedModule(name, version, payload, contextID)
	s.cache.Put(m)
	return m, nil
}

func (s *Swapper) nameLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.names[name]
	if lock == nil {
		lock = &sync.Mutex{}
		s.names[name] = lock
	}
	return lock
}
