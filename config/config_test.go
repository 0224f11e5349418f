package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[cache]
max-entries = 64
store-path = "modules.db"

[delegates]
sweep-interval = "30s"
ttl = "10m"

[catalog]
catalog-file = "caps.toml"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Cache.MaxEntries != 64 {
		t.Errorf("MaxEntries = %d", c.Cache.MaxEntries)
	}
	if c.Delegates.SweepInterval.Duration() != 30*time.Second {
		t.Errorf("SweepInterval = %v", c.Delegates.SweepInterval.Duration())
	}
	if c.Delegates.TTL.Duration() != 10*time.Minute {
		t.Errorf("TTL = %v", c.Delegates.TTL.Duration())
	}
	if c.Catalog.CatalogFile != "caps.toml" {
		t.Errorf("CatalogFile = %q", c.Catalog.CatalogFile)
	}
	want := filepath.Join(c.Dir, "modules.db")
	if got := c.StorePath(); got != want {
		t.Errorf("StorePath = %q, want %q", got, want)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `[cache]`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if c.Cache.MaxEntries != def.Cache.MaxEntries {
		t.Errorf("MaxEntries = %d, want default %d", c.Cache.MaxEntries, def.Cache.MaxEntries)
	}
	if c.StorePath() != "" {
		t.Errorf("StorePath = %q, want disabled", c.StorePath())
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `[cache]
max-entries = 7`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil || c.Cache.MaxEntries != 7 {
		t.Errorf("FindAndLoad = %+v", c)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad errored: %v", err)
	}
	if c != nil {
		t.Errorf("Expected nil config, got %+v", c)
	}
}
