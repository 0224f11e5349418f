package loader

import (
	"github.com/calyx-run/modrun/config"
	"github.com/calyx-run/modrun/modcache"
)

// Stack is the assembled module runtime a host embeds: module cache,
// context manager, delegate cache, and the swapper binding them. NewStack
// wires it from configuration, including the background delegate sweeper.
type Stack struct {
	Cache     *modcache.Cache
	Manager   *Manager
	Delegates *DelegateCache
	Swapper   *Swapper

	store       modcache.Store
	stopSweeper func()
}

// NewStack assembles a runtime stack from cfg. A nil cfg uses defaults.
// When cache.store-path is set the cache gets a sqlite backing store; when
// delegates.sweep-interval is positive a background sweeper prunes handles
// older than delegates.ttl until Close.
func NewStack(cfg *config.Config) (*Stack, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	var store modcache.Store
	if path := cfg.StorePath(); path != "" {
		s, err := modcache.OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		store = s
	}

	cache := modcache.New(modcache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		Store:      store,
	})
	manager := NewManager()
	delegates := NewDelegateCache()

	st := &Stack{
		Cache:     cache,
		Manager:   manager,
		Delegates: delegates,
		Swapper:   NewSwapper(cache, manager, delegates),
		store:     store,
	}
	if interval := cfg.Delegates.SweepInterval.Duration(); interval > 0 {
		st.stopSweeper = delegates.StartSweeper(interval, cfg.Delegates.TTL.Duration())
	}
	return st, nil
}

// Close stops the delegate sweeper and closes the backing store, if any.
func (s *Stack) Close() error {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
