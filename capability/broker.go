package capability

import (
	"fmt"
	"sort"
	"sync"
)

// ServiceFactory constructs the runtime service backing a capability.
// Factories run inside Instance.Load, which is the only broker operation
// allowed to block.
type ServiceFactory func(Capability) (any, error)

// Instance is a lazily-loadable handle on one capability's service.
// Load must be called before Service returns a usable value.
type Instance struct {
	mu      sync.Mutex
	cap     Capability
	factory ServiceFactory
	loaded  bool
	service any
}

// Capability returns the definition this instance was created from.
func (i *Instance) Capability() Capability {
	return i.cap
}

// Loaded reports whether the service has been materialized.
func (i *Instance) Loaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loaded
}

// Load materializes the service. It is idempotent: a second call on a
// loaded instance is a no-op.
func (i *Instance) Load() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loaded {
		return nil
	}
	svc, err := i.factory(i.cap)
	if err != nil {
		return fmt.Errorf("capability: loading %q: %w", string(i.cap.ID), err)
	}
	i.service = svc
	i.loaded = true
	return nil
}

// Unload drops the service. Safe to call on an unloaded instance.
func (i *Instance) Unload() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.service = nil
	i.loaded = false
}

// Service returns the loaded service value. It fails rather than return
// nil for an unloaded instance.
func (i *Instance) Service() (any, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.loaded {
		return nil, fmt.Errorf("capability: %q is not loaded", string(i.cap.ID))
	}
	return i.service, nil
}

// ServiceAs returns the instance's service as T. A type mismatch is an
// error, never a silently wrong value.
func ServiceAs[T any](i *Instance) (T, error) {
	var zero T
	svc, err := i.Service()
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("capability: service for %q is %T, not %T",
			string(i.cap.ID), svc, zero)
	}
	return typed, nil
}

// ServiceStub is the inert service the broker hands out when no factory has
// been registered for a capability. It carries the definition so callers
// can still inspect linkage metadata.
type ServiceStub struct {
	Capability Capability
}

// BrokerStats is a snapshot of broker counters. Requests, CacheHits, and
// CacheMisses only grow; Registered, Loaded, and MemoryUsage track current
// state.
type BrokerStats struct {
	Registered  int
	Loaded      int
	Requests    uint64
	CacheHits   uint64
	CacheMisses uint64
	MemoryUsage uint64
}

// Broker is the runtime capability registry. It is populated once at
// process start (typically from a Catalog) and then queried by concurrent
// guest-invocation workers; callers apply request-time policy (tenant
// denies, privilege grants) before calling Request.
type Broker struct {
	mu        sync.RWMutex
	caps      map[ID]Capability
	order     []ID
	factories map[ID]ServiceFactory
	instances map[ID]*Instance

	requests uint64
	hits     uint64
	misses   uint64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		caps:      make(map[ID]Capability),
		factories: make(map[ID]ServiceFactory),
		instances: make(map[ID]*Instance),
	}
}

// NewBrokerFromCatalog creates a broker pre-registered with every catalog
// entry.
func NewBrokerFromCatalog(c *Catalog) *Broker {
	b := NewBroker()
	for _, cap := range c.All() {
		b.Register(cap)
	}
	return b
}

// Register inserts or overwrites a capability. No dependency validation
// happens here; registrations may arrive in any order and are validated
// lazily by ResolveDependencies.
func (b *Broker) Register(cap Capability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.caps[cap.ID]; !dup {
		b.order = append(b.order, cap.ID)
	}
	b.caps[cap.ID] = cap
}

// RegisterFactory installs the service factory for an id. Instances created
// afterwards use it; without a factory, Load produces a *ServiceStub.
func (b *Broker) RegisterFactory(id ID, f ServiceFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factories[id] = f
}

// Get returns a registered capability.
func (b *Broker) Get(id ID) (Capability, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cap, ok := b.caps[id]
	return cap, ok
}

// List returns all registered capabilities in registration order.
func (b *Broker) List() []Capability {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Capability, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.caps[id])
	}
	return out
}

// ListByCategory returns registered capabilities in the category, sorted by
// id.
func (b *Broker) ListByCategory(cat Category) []Capability {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Capability
	for _, id := range b.order {
		if b.caps[id].Category == cat {
			out = append(out, b.caps[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Request returns the instance for an id, creating it on first request.
// The instance is shared: repeated requests for the same id return the same
// handle until Release drops it.
func (b *Broker) Request(id ID) (*Instance, error) {
	inst, _, err := b.request(id)
	return inst, err
}

// request reports whether it created the instance, so batch rollback can
// tell its own instances from ones earlier callers already hold.
func (b *Broker) request(id ID) (*Instance, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++

	cap, ok := b.caps[id]
	if !ok {
		b.misses++
		return nil, false, &UnknownCapabilityError{ID: id}
	}
	if inst, ok := b.instances[id]; ok {
		b.hits++
		return inst, false, nil
	}
	b.misses++

	factory := b.factories[id]
	if factory == nil {
		factory = func(cap Capability) (any, error) {
			return &ServiceStub{Capability: cap}, nil
		}
	}
	inst := &Instance{cap: cap, factory: factory}
	b.instances[id] = inst
	return inst, true, nil
}

// RequestMultiple requests every id, failing the whole batch on the first
// error. Instances materialized by this call are released again on failure
// so a failed batch leaves no half-loaded residue; instances that already
// existed belong to earlier callers and stay loaded.
func (b *Broker) RequestMultiple(ids []ID) (map[ID]*Instance, error) {
	out := make(map[ID]*Instance, len(ids))
	var created []ID
	for _, id := range ids {
		inst, fresh, err := b.request(id)
		if err != nil {
			for _, granted := range created {
				b.Release(granted)
			}
			return nil, fmt.Errorf("capability: batch request failed at %q: %w", string(id), err)
		}
		out[id] = inst
		if fresh {
			created = append(created, id)
		}
	}
	return out, nil
}

// Release unloads and drops the instance for an id. Releasing an unknown or
// already-released id is a no-op.
func (b *Broker) Release(id ID) {
	b.mu.Lock()
	inst := b.instances[id]
	delete(b.instances, id)
	b.mu.Unlock()

	// Unload outside the broker lock so a slow service teardown for one id
	// cannot stall requests for others.
	if inst != nil {
		inst.Unload()
	}
}

// ResolveDependencies returns the dependency closure of an id over the live
// registrations, sorted. Dependencies missing from the registrations are
// not expanded but are kept in the result; an unregistered root id is an
// error.
func (b *Broker) ResolveDependencies(id ID) ([]ID, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.caps[id]; !ok {
		return nil, &UnknownCapabilityError{ID: id}
	}
	set := closure(func(id ID) ([]ID, bool) {
		cap, ok := b.caps[id]
		if !ok {
			return nil, false
		}
		return cap.Dependencies, true
	}, []ID{id})
	return sortIDs(set), nil
}

// Stats returns a snapshot of broker counters.
func (b *Broker) Stats() BrokerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := BrokerStats{
		Registered:  len(b.caps),
		Requests:    b.requests,
		CacheHits:   b.hits,
		CacheMisses: b.misses,
	}
	for _, inst := range b.instances {
		if inst.Loaded() {
			s.Loaded++
			s.MemoryUsage += inst.cap.MemoryFootprint
		}
	}
	return s
}
