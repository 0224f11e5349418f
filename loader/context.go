package loader

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("modrun.loader")

// ErrContextNotFound is returned for operations against a stale or
// unloaded context id.
var ErrContextNotFound = errors.New("loader: context not found")

// LoadContext is an isolated, individually-unloadable execution scope.
// Unloading a context is the only way memory attributed to it is
// reclaimed.
type LoadContext struct {
	ID            string
	Name          string
	Collectible   bool
	LoadedModules []string
	CreatedAt     time.Time
	MemoryUsage   uint64
}

// LoadResult reports a successful module load.
type LoadResult struct {
	Success       bool
	AssemblyName  string
	ExportedTypes []string
	LoadTime      time.Duration
}

// Manager owns the process's load contexts. Context payload bytes are owned
// by the module cache; the manager only tracks attribution by context id.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]*LoadContext
	retired  map[string]struct{}
}

// NewManager creates an empty context manager.
func NewManager() *Manager {
	return &Manager{
		contexts: make(map[string]*LoadContext),
		retired:  make(map[string]struct{}),
	}
}

// Create allocates a fresh collectible context for a module name and
// returns its id.
func (m *Manager) Create(name string) string {
	ctx := &LoadContext{
		ID:          uuid.NewString(),
		Name:        name,
		Collectible: true,
		CreatedAt:   time.Now(),
	}
	m.mu.Lock()
	m.contexts[ctx.ID] = ctx
	m.mu.Unlock()
	return ctx.ID
}

// Load validates a payload's header and accounts it to the context.
// An invalid payload fails with ErrInvalidPayload before any state
// changes; an unknown context id fails with ErrContextNotFound.
func (m *Manager) Load(contextID string, payload []byte) (LoadResult, error) {
	start := time.Now()

	hdr, err := ParsePayload(payload)
	if err != nil {
		log.Warningf("rejected payload for context %s: %v", contextID, err)
		return LoadResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.contexts[contextID]
	if !ok {
		return LoadResult{}, fmt.Errorf("%w: %s", ErrContextNotFound, contextID)
	}
	ctx.LoadedModules = append(ctx.LoadedModules, hdr.AssemblyName)
	ctx.MemoryUsage += uint64(len(payload))

	log.Infof("loaded %s into context %s (%d bytes)", hdr.AssemblyName, contextID, len(payload))
	return LoadResult{
		Success:       true,
		AssemblyName:  hdr.AssemblyName,
		ExportedTypes: hdr.ExportedTypes,
		LoadTime:      time.Since(start),
	}, nil
}

// Unload releases a context and reclaims its attributed memory. It is
// idempotent: unloading an unknown or already-unloaded id returns false
// rather than failing, so it is safe to race with in-flight loads.
func (m *Manager) Unload(contextID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contexts[contextID]; !ok {
		return false
	}
	delete(m.contexts, contextID)
	delete(m.retired, contextID)
	log.Infof("unloaded context %s", contextID)
	return true
}

// Get returns a snapshot of a live context.
func (m *Manager) Get(contextID string) (LoadContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.contexts[contextID]
	if !ok {
		return LoadContext{}, fmt.Errorf("%w: %s", ErrContextNotFound, contextID)
	}
	return snapshot(ctx), nil
}

// Contexts returns snapshots of every live context, sorted by creation.
func (m *Manager) Contexts() []LoadContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LoadContext, 0, len(m.contexts))
	for _, ctx := range m.contexts {
		out = append(out, snapshot(ctx))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Retire marks a context as replaced by a hot-swap. The context stays
// loaded, since in-flight calls may still reference it, until an explicit
// Unload reclaims it.
func (m *Manager) Retire(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contexts[contextID]; ok {
		m.retired[contextID] = struct{}{}
	}
}

// Retired lists retired-but-still-loaded context ids, sorted. Deploy
// tooling sweeps these once in-flight work has drained.
func (m *Manager) Retired() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.retired))
	for id := range m.retired {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MemoryUsage sums attributed memory across live contexts.
func (m *Manager) MemoryUsage() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total uint64
	for _, ctx := range m.contexts {
		total += ctx.MemoryUsage
	}
	return total
}

func snapshot(ctx *LoadContext) LoadContext {
	cp := *ctx
	cp.LoadedModules = append([]string(nil), ctx.LoadedModules...)
	return cp
}
