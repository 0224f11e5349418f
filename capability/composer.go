package capability

import "sort"

// Composer builds capability profiles: deployment-time sets of capability
// ids filtered and closed under the catalog's dependency DAG. A Composer is
// pure (no I/O, no shared state), so independent instances are safe to
// use from concurrent goroutines.
type Composer struct {
	catalog    *Catalog
	set        map[ID]struct{}
	unresolved map[ID]struct{} // seeds with no catalog entry
}

// NewComposer creates a composer with an empty working set.
func NewComposer(catalog *Catalog) *Composer {
	return &Composer{
		catalog:    catalog,
		set:        make(map[ID]struct{}),
		unresolved: make(map[ID]struct{}),
	}
}

// Base seeds the working set, replacing any previous contents.
func (c *Composer) Base(ids ...ID) *Composer {
	c.set = make(map[ID]struct{})
	c.unresolved = make(map[ID]struct{})
	return c.Add(ids...)
}

// Add inserts ids into the working set. Ids without a catalog entry are
// tracked as unresolved rather than silently dropped.
func (c *Composer) Add(ids ...ID) *Composer {
	for _, id := range ids {
		if c.catalog.Has(id) {
			c.set[id] = struct{}{}
		} else {
			c.unresolved[id] = struct{}{}
		}
	}
	return c
}

// Remove deletes ids from the working set.
func (c *Composer) Remove(ids ...ID) *Composer {
	for _, id := range ids {
		delete(c.set, id)
		delete(c.unresolved, id)
	}
	return c
}

// FilterByCategory narrows the set to capabilities in the given category.
func (c *Composer) FilterByCategory(cat Category) *Composer {
	for id := range c.set {
		if cap, _ := c.catalog.Get(id); cap.Category != cat {
			delete(c.set, id)
		}
	}
	return c
}

// ExcludePrivileged removes privileged capabilities from the set.
func (c *Composer) ExcludePrivileged() *Composer {
	for id := range c.set {
		if cap, _ := c.catalog.Get(id); cap.Privileged {
			delete(c.set, id)
		}
	}
	return c
}

// OnlyNonPrivileged narrows the set to non-privileged capabilities. It is
// the profile-safety filter used before deploying untrusted code.
func (c *Composer) OnlyNonPrivileged() *Composer {
	return c.ExcludePrivileged()
}

// ResolveDependencies closes the working set under the dependency DAG.
// Applying it twice yields the same set as once.
func (c *Composer) ResolveDependencies() *Composer {
	seeds := make([]ID, 0, len(c.set))
	for id := range c.set {
		seeds = append(seeds, id)
	}
	for _, id := range c.catalog.Closure(seeds...) {
		c.set[id] = struct{}{}
	}
	return c
}

// Build returns the composed capabilities sorted by id.
func (c *Composer) Build() []Capability {
	out := make([]Capability, 0, len(c.set))
	for _, id := range sortIDs(c.set) {
		cap, _ := c.catalog.Get(id)
		out = append(out, cap)
	}
	return out
}

// Unresolved returns seeds that had no catalog entry, sorted by id.
func (c *Composer) Unresolved() []ID {
	return sortIDs(c.unresolved)
}

// Safe reports whether the current set contains no privileged capability,
// i.e. whether the profile may run untrusted code without operator grants.
func (c *Composer) Safe() bool {
	for id := range c.set {
		if cap, _ := c.catalog.Get(id); cap.Privileged {
			return false
		}
	}
	return true
}

// Assemblies returns the deduplicated required assemblies across the set.
func (c *Composer) Assemblies() []string {
	return c.collect(func(cap Capability) []string { return cap.RequiredAssemblies })
}

// Namespaces returns the deduplicated required namespaces across the set.
func (c *Composer) Namespaces() []string {
	return c.collect(func(cap Capability) []string { return cap.RequiredNamespaces })
}

// MemoryFootprint returns the summed advisory footprint of the set. The set
// is deduplicated by id, so nothing is counted twice.
func (c *Composer) MemoryFootprint() uint64 {
	var total uint64
	for id := range c.set {
		cap, _ := c.catalog.Get(id)
		total += cap.MemoryFootprint
	}
	return total
}

func (c *Composer) collect(field func(Capability) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for id := range c.set {
		cap, _ := c.catalog.Get(id)
		for _, s := range field(cap) {
			if _, dup := seen[s]; !dup {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}
