package modcache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func testModule(name, version string, payload string) *CachedModule {
	return NewCachedModule(name, version, []byte(payload), "ctx-"+name)
}

func TestCachePutGet(t *testing.T) {
	c := New(Options{})
	m := testModule("greeter", "1.0", "payload-a")
	c.Put(m)

	got, ok := c.Get(m.Hash)
	if !ok {
		t.Fatal("Get missed after Put")
	}
	if got.Name != "greeter" || got.Version != "1.0" || !bytes.Equal(got.Data, []byte("payload-a")) {
		t.Errorf("Got wrong module: %+v", got)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
	if !got.LastAccessedAt.After(got.CreatedAt) && !got.LastAccessedAt.Equal(got.CreatedAt) {
		t.Error("LastAccessedAt not bumped")
	}
}

func TestCacheDedupByHash(t *testing.T) {
	c := New(Options{})
	c.Put(testModule("a", "1.0", "same-bytes"))
	c.Put(testModule("b", "2.0", "same-bytes"))

	if s := c.Stats(); s.Entries != 1 {
		t.Errorf("Entries = %d, want 1 (content dedup)", s.Entries)
	}
}

func TestCacheGetByName(t *testing.T) {
	c := New(Options{})
	c.Put(testModule("greeter", "1.0", "v1"))
	c.Put(testModule("greeter", "2.0", "v2"))
	c.Put(testModule("other", "1.0", "other"))

	m, ok := c.GetByName("greeter")
	if !ok || m.Version != "2.0" {
		t.Errorf("GetByName without version = %+v, want most recent insert", m)
	}
	m, ok = c.GetByName("greeter", "1.0")
	if !ok || m.Version != "1.0" {
		t.Errorf("GetByName with version = %+v", m)
	}
	if _, ok := c.GetByName("ghost"); ok {
		t.Error("GetByName hit for unknown name")
	}
}

func TestCachePeekByNameNoBookkeeping(t *testing.T) {
	c := New(Options{})
	c.Put(testModule("greeter", "1.0", "v1"))
	c.Put(testModule("greeter", "2.0", "v2"))

	m, ok := c.PeekByName("greeter")
	if !ok || m.Version != "2.0" {
		t.Fatalf("PeekByName = %+v, want most recent insert", m)
	}
	if m.AccessCount != 0 {
		t.Errorf("Peek bumped AccessCount to %d", m.AccessCount)
	}
	if _, ok := c.PeekByName("ghost"); ok {
		t.Error("PeekByName hit for unknown name")
	}
	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("Peek counted lookups: hits=%d misses=%d", s.Hits, s.Misses)
	}
}

func TestCacheGetVersions(t *testing.T) {
	c := New(Options{})
	c.Put(testModule("m", "1.2.0", "a"))
	c.Put(testModule("m", "1.10.0", "b"))
	c.Put(testModule("m", "1.3.0", "c"))

	got := c.GetVersions("m")
	want := []string{"1.10.0", "1.3.0", "1.2.0"}
	if len(got) != len(want) {
		t.Fatalf("GetVersions = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetVersions[%d] = %q, want %q (semver order)", i, got[i], want[i])
		}
	}
}

func TestCacheEvictLRU(t *testing.T) {
	c := New(Options{})
	old := testModule("old", "1.0", "old")
	newer := testModule("new", "1.0", "new")
	old.LastAccessedAt = time.Unix(1, 0)
	newer.LastAccessedAt = time.Unix(2, 0)
	c.Put(old)
	c.Put(newer)

	if n := c.EvictLRU(1); n != 1 {
		t.Fatalf("EvictLRU = %d, want 1", n)
	}
	if c.Has(old.Hash) {
		t.Error("LRU kept the oldest entry")
	}
	if !c.Has(newer.Hash) {
		t.Error("LRU evicted the newer entry")
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", s.Evictions)
	}
}

func TestCacheEvictLRUTieBreaksByInsertion(t *testing.T) {
	c := New(Options{})
	ts := time.Unix(5, 0)
	first := testModule("first", "1.0", "f")
	second := testModule("second", "1.0", "s")
	first.LastAccessedAt = ts
	second.LastAccessedAt = ts
	c.Put(first)
	c.Put(second)

	c.EvictLRU(1)
	if c.Has(first.Hash) {
		t.Error("Tie not broken by insertion order")
	}
	if !c.Has(second.Hash) {
		t.Error("Wrong victim on tie")
	}
}

func TestCacheEvictMoreThanPresent(t *testing.T) {
	c := New(Options{})
	c.Put(testModule("only", "1.0", "x"))

	if n := c.EvictLRU(5); n != 1 {
		t.Errorf("EvictLRU(5) = %d, want 1", n)
	}
	if n := c.EvictLRU(1); n != 0 {
		t.Errorf("EvictLRU on empty cache = %d, want 0", n)
	}
}

func TestCacheMaxEntriesAutoEvicts(t *testing.T) {
	c := New(Options{MaxEntries: 2})
	a := testModule("a", "1.0", "a")
	b := testModule("b", "1.0", "b")
	a.LastAccessedAt = time.Unix(1, 0)
	b.LastAccessedAt = time.Unix(2, 0)
	c.Put(a)
	c.Put(b)
	c.Put(testModule("c", "1.0", "c"))

	if s := c.Stats(); s.Entries != 2 {
		t.Errorf("Entries = %d, want 2", s.Entries)
	}
	if c.Has(a.Hash) {
		t.Error("Oldest entry survived auto-eviction")
	}
}

func TestCacheStats(t *testing.T) {
	c := New(Options{})

	if hr := c.Stats().HitRate; hr != 0 {
		t.Errorf("HitRate with no lookups = %v, want 0", hr)
	}

	m := testModule("m", "1.0", "data")
	c.Put(m)
	c.Get(m.Hash)    // hit
	c.Get("missing") // miss

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d", s.Hits, s.Misses)
	}
	if s.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", s.HitRate)
	}
	if s.TotalSize != int64(len("data")) {
		t.Errorf("TotalSize = %d", s.TotalSize)
	}
}

func TestCacheRemoveAndClear(t *testing.T) {
	c := New(Options{})
	m := testModule("m", "1.0", "data")
	c.Put(m)

	if !c.Remove(m.Hash) {
		t.Error("Remove returned false for present entry")
	}
	if c.Remove(m.Hash) {
		t.Error("Remove returned true for absent entry")
	}

	c.Put(m)
	c.Clear()
	if s := c.Stats(); s.Entries != 0 {
		t.Errorf("Entries after Clear = %d", s.Entries)
	}
}

func TestCachePersistNotConfigured(t *testing.T) {
	c := New(Options{})
	if err := c.Persist(context.Background()); err != ErrNotConfigured {
		t.Errorf("Persist = %v, want ErrNotConfigured", err)
	}
	if err := c.Restore(context.Background()); err != ErrNotConfigured {
		t.Errorf("Restore = %v, want ErrNotConfigured", err)
	}
}
