package modcache

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// sortVersionsDesc orders version strings newest first. Versions that parse
// as semver compare semantically; anything else falls back to reverse
// lexical order and sorts after all semver versions.
func sortVersionsDesc(versions []string) {
	parsed := make(map[string]*semver.Version, len(versions))
	for _, v := range versions {
		if sv, err := semver.NewVersion(v); err == nil {
			parsed[v] = sv
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		vi, okI := parsed[versions[i]]
		vj, okJ := parsed[versions[j]]
		switch {
		case okI && okJ:
			return vi.GreaterThan(vj)
		case okI:
			return true
		case okJ:
			return false
		default:
			return versions[i] > versions[j]
		}
	})
}
