// Package capability implements the capability system for the Calyx module
// runtime: a curated catalog of runtime services, a static detector that
// infers which services guest code needs, a profile composer, and a broker
// that gates service access at run time.
package capability

import "sort"

// ID identifies a capability in the catalog.
type ID string

// Category groups capabilities by the kind of service they provide.
type Category string

const (
	CategoryCore          Category = "core"
	CategoryCollections   Category = "collections"
	CategoryIO            Category = "io"
	CategoryNetwork       Category = "network"
	CategorySerialization Category = "serialization"
	CategorySecurity      Category = "security"
	CategoryLogging       Category = "logging"
	CategoryDatabase      Category = "database"
	CategoryAsync         Category = "async"
	CategoryReflection    Category = "reflection"
	CategoryInterop       Category = "interop"
)

// Capability describes a named runtime service. Dependencies must form a DAG
// over the catalog; a cycle is a configuration error caught by NewCatalog.
// Privileged capabilities are never granted implicitly: the detector reports
// them as unavailable and the broker leaves the grant decision to the caller.
type Capability struct {
	ID              ID
	Name            string
	Dependencies    []ID
	Privileged      bool
	Category        Category
	MemoryFootprint uint64 // advisory, bytes

	// Descriptive metadata, not interpreted by the runtime.
	ProvidedTypes   []string
	ProvidedMethods []string

	// Linkage metadata passed through to the compiler pipeline.
	RequiredAssemblies []string
	RequiredNamespaces []string
}

// Catalog is an immutable set of capability definitions. It is constructed
// once (per process or per test) and passed into the detector, composer,
// and broker explicitly; there is no global catalog.
type Catalog struct {
	caps  map[ID]Capability
	order []ID // insertion order, for stable All()
}

// NewCatalog builds and validates a catalog. Every listed dependency must
// resolve to another entry and the dependency graph must be acyclic;
// violations are returned as UnresolvableDependencyError or
// CyclicDependencyError and should be treated as fatal at startup.
func NewCatalog(caps ...Capability) (*Catalog, error) {
	c := &Catalog{
		caps:  make(map[ID]Capability, len(caps)),
		order: make([]ID, 0, len(caps)),
	}
	for _, cap := range caps {
		if _, dup := c.caps[cap.ID]; !dup {
			c.order = append(c.order, cap.ID)
		}
		c.caps[cap.ID] = cap
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the capability for the given id.
func (c *Catalog) Get(id ID) (Capability, bool) {
	cap, ok := c.caps[id]
	return cap, ok
}

// Has reports whether the catalog contains the given id.
func (c *Catalog) Has(id ID) bool {
	_, ok := c.caps[id]
	return ok
}

// All returns every capability in insertion order.
func (c *Catalog) All() []Capability {
	out := make([]Capability, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.caps[id])
	}
	return out
}

// ByCategory returns the capabilities in the given category, sorted by id.
func (c *Catalog) ByCategory(cat Category) []Capability {
	var out []Capability
	for _, id := range c.order {
		if c.caps[id].Category == cat {
			out = append(out, c.caps[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.caps)
}

// sortIDs returns the ids of a capability set in sorted order.
func sortIDs(set map[ID]struct{}) []ID {
	ids := make([]ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
