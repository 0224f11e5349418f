package capability

// Dependency resolution. The same depth-first closure is used by the
// detector, the composer, and the broker; only the lookup source differs
// (catalog entries vs. live broker registrations).

// depsFunc resolves an id to its direct dependencies. The bool reports
// whether the id is known to the source at all.
type depsFunc func(ID) ([]ID, bool)

// closure returns the transitive dependency closure of the seed ids,
// including the seeds themselves. Ids the source does not know are kept in
// the result untouched (the caller decides whether that is an error); their
// dependencies are simply not expanded. A visited set guards against
// revisits so a malformed cyclic graph cannot loop forever here; cycles
// are rejected earlier, when the catalog is built.
func closure(deps depsFunc, seeds []ID) map[ID]struct{} {
	visited := make(map[ID]struct{})
	var walk func(id ID)
	walk = func(id ID) {
		if _, seen := visited[id]; seen {
			return
		}
		visited[id] = struct{}{}
		ds, ok := deps(id)
		if !ok {
			return
		}
		for _, d := range ds {
			walk(d)
		}
	}
	for _, id := range seeds {
		walk(id)
	}
	return visited
}

// Closure returns the dependency closure of the given ids over this
// catalog, sorted by id. Unknown seeds are included as-is.
func (c *Catalog) Closure(ids ...ID) []ID {
	set := closure(func(id ID) ([]ID, bool) {
		cap, ok := c.caps[id]
		if !ok {
			return nil, false
		}
		return cap.Dependencies, true
	}, ids)
	return sortIDs(set)
}

// validate checks that every dependency resolves and that the dependency
// graph is acyclic, using a three-color depth-first search.
func (c *Catalog) validate() error {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)
	color := make(map[ID]int, len(c.caps))

	var path []ID
	var visit func(id ID) error
	visit = func(id ID) error {
		color[id] = gray
		path = append(path, id)
		for _, dep := range c.caps[id].Dependencies {
			if _, ok := c.caps[dep]; !ok {
				return &UnresolvableDependencyError{From: id, Missing: dep}
			}
			switch color[dep] {
			case gray:
				// Trim the path down to the cycle and close it.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append(append([]ID{}, path[start:]...), dep)
				return &CyclicDependencyError{Path: cycle}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil
	}

	for _, id := range c.order {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
