package capability

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Catalog and rule tables can be loaded from TOML files so deployments can
// curate their own capability surface without recompiling the runtime. The
// file formats mirror the in-memory types:
//
//	[[capability]]
//	id = "http"
//	name = "HTTP Client"
//	category = "network"
//	dependencies = ["core", "async"]
//	privileged = true
//	memory-footprint = 131072
//	required-assemblies = ["System.Net.Http"]
//
//	[[rule]]
//	pattern = 'new\s+HttpClient'
//	capability = "http"
//	confidence = 0.95
//	reason = "HTTP client construction"

type catalogFile struct {
	Capabilities []capabilityEntry `toml:"capability"`
}

type capabilityEntry struct {
	ID                 string   `toml:"id"`
	Name               string   `toml:"name"`
	Dependencies       []string `toml:"dependencies"`
	Privileged         bool     `toml:"privileged"`
	Category           string   `toml:"category"`
	MemoryFootprint    uint64   `toml:"memory-footprint"`
	ProvidedTypes      []string `toml:"provided-types"`
	ProvidedMethods    []string `toml:"provided-methods"`
	RequiredAssemblies []string `toml:"required-assemblies"`
	RequiredNamespaces []string `toml:"required-namespaces"`
}

type rulesFile struct {
	Rules []ruleEntry `toml:"rule"`
}

type ruleEntry struct {
	Pattern    string  `toml:"pattern"`
	Capability string  `toml:"capability"`
	Confidence float64 `toml:"confidence"`
	Reason     string  `toml:"reason"`
}

// LoadCatalogFile parses and validates a TOML catalog file.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capability: cannot read %s: %w", path, err)
	}
	var f catalogFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("capability: parse error in %s: %w", path, err)
	}

	caps := make([]Capability, 0, len(f.Capabilities))
	for _, e := range f.Capabilities {
		if e.ID == "" {
			return nil, fmt.Errorf("capability: %s: capability entry without id", path)
		}
		deps := make([]ID, 0, len(e.Dependencies))
		for _, d := range e.Dependencies {
			deps = append(deps, ID(d))
		}
		caps = append(caps, Capability{
			ID:                 ID(e.ID),
			Name:               e.Name,
			Dependencies:       deps,
			Privileged:         e.Privileged,
			Category:           Category(e.Category),
			MemoryFootprint:    e.MemoryFootprint,
			ProvidedTypes:      e.ProvidedTypes,
			ProvidedMethods:    e.ProvidedMethods,
			RequiredAssemblies: e.RequiredAssemblies,
			RequiredNamespaces: e.RequiredNamespaces,
		})
	}
	return NewCatalog(caps...)
}

// LoadRulesFile parses a TOML rule-table file, compiling each pattern.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capability: cannot read %s: %w", path, err)
	}
	var f rulesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("capability: parse error in %s: %w", path, err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, e := range f.Rules {
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("capability: %s: rule %d: bad pattern: %w", path, i, err)
		}
		if e.Capability == "" {
			return nil, fmt.Errorf("capability: %s: rule %d has no capability", path, i)
		}
		rules = append(rules, Rule{
			Pattern:    re,
			Capability: ID(e.Capability),
			Confidence: e.Confidence,
			Reason:     e.Reason,
		})
	}
	return rules, nil
}
