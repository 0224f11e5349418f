package capability

import (
	"errors"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		Capability{ID: "core", Category: CategoryCore, MemoryFootprint: 100},
		Capability{ID: "collections", Dependencies: []ID{"core"}, Category: CategoryCollections, MemoryFootprint: 50},
		Capability{ID: "linq", Dependencies: []ID{"collections"}, Category: CategoryCollections, MemoryFootprint: 25},
		Capability{ID: "http", Dependencies: []ID{"core"}, Privileged: true, Category: CategoryNetwork, MemoryFootprint: 200},
	)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	return c
}

func TestCatalogLookup(t *testing.T) {
	c := testCatalog(t)

	if c.Len() != 4 {
		t.Errorf("Expected 4 entries, got %d", c.Len())
	}
	cap, ok := c.Get("linq")
	if !ok || cap.ID != "linq" {
		t.Errorf("Get(linq) = %v, %v", cap, ok)
	}
	if _, ok := c.Get("nope"); ok {
		t.Error("Expected miss for unknown id")
	}

	cats := c.ByCategory(CategoryCollections)
	if len(cats) != 2 {
		t.Errorf("Expected 2 collections capabilities, got %d", len(cats))
	}
}

func TestCatalogRejectsMissingDependency(t *testing.T) {
	_, err := NewCatalog(
		Capability{ID: "a", Dependencies: []ID{"ghost"}},
	)
	var unres *UnresolvableDependencyError
	if !errors.As(err, &unres) {
		t.Fatalf("Expected UnresolvableDependencyError, got %v", err)
	}
	if unres.From != "a" || unres.Missing != "ghost" {
		t.Errorf("Wrong error detail: %+v", unres)
	}
}

func TestCatalogRejectsCycle(t *testing.T) {
	_, err := NewCatalog(
		Capability{ID: "a", Dependencies: []ID{"b"}},
		Capability{ID: "b", Dependencies: []ID{"c"}},
		Capability{ID: "c", Dependencies: []ID{"a"}},
	)
	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("Expected CyclicDependencyError, got %v", err)
	}
	if len(cyc.Path) < 4 {
		t.Errorf("Expected a closed witness cycle, got %v", cyc.Path)
	}
	if cyc.Path[0] != cyc.Path[len(cyc.Path)-1] {
		t.Errorf("Cycle path not closed: %v", cyc.Path)
	}
}

func TestCatalogSelfCycle(t *testing.T) {
	_, err := NewCatalog(Capability{ID: "a", Dependencies: []ID{"a"}})
	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("Expected CyclicDependencyError, got %v", err)
	}
}

func TestClosureIsSupersetOfDirectDeps(t *testing.T) {
	c := testCatalog(t)

	got := c.Closure("linq")
	want := map[ID]bool{"core": true, "collections": true, "linq": true}
	if len(got) != len(want) {
		t.Fatalf("Closure(linq) = %v", got)
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("Unexpected member %q", id)
		}
	}
}

func TestClosureKeepsUnknownSeeds(t *testing.T) {
	c := testCatalog(t)

	got := c.Closure("linq", "mystery")
	found := false
	for _, id := range got {
		if id == "mystery" {
			found = true
		}
	}
	if !found {
		t.Errorf("Unknown seed dropped from closure: %v", got)
	}
}

func TestBuiltinCatalogValid(t *testing.T) {
	c := BuiltinCatalog()
	if c.Len() == 0 {
		t.Fatal("Built-in catalog is empty")
	}
	// Every closure terminates and contains its seed.
	for _, cap := range c.All() {
		closure := c.Closure(cap.ID)
		seen := false
		for _, id := range closure {
			if id == cap.ID {
				seen = true
			}
		}
		if !seen {
			t.Errorf("Closure(%s) missing the seed itself", cap.ID)
		}
	}
}
