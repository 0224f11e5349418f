package capability

import (
	"fmt"
	"strings"
)

// UnknownCapabilityError is returned when an id is not present in the
// catalog or broker registrations.
type UnknownCapabilityError struct {
	ID ID
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("capability: unknown capability %q", string(e.ID))
}

// UnresolvableDependencyError indicates a capability lists a dependency
// that has no catalog entry.
type UnresolvableDependencyError struct {
	From    ID
	Missing ID
}

func (e *UnresolvableDependencyError) Error() string {
	return fmt.Sprintf("capability: %q depends on %q which is not in the catalog",
		string(e.From), string(e.Missing))
}

// CyclicDependencyError indicates the catalog's dependency graph contains a
// cycle. The Path holds one witness cycle, first id repeated at the end.
type CyclicDependencyError struct {
	Path []ID
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = string(id)
	}
	return "capability: dependency cycle: " + strings.Join(parts, " -> ")
}
