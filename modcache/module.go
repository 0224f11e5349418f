// Package modcache implements the content-addressed cache of compiled guest
// modules, with LRU eviction and an optional persistent backing store.
package modcache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CachedModule is one compiled module. Hash is the true identity: two
// payloads with the same content share an entry regardless of name. The
// (Name, Version) pair is a secondary index used for hot-swap lookups and
// is not unique-enforced.
type CachedModule struct {
	Hash           string // hex sha256 of Data, primary key
	Name           string
	Version        string
	Data           []byte
	Size           int
	ContextID      string // owning load context
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    uint64
}

// HashPayload returns the content digest used as a module's cache key.
func HashPayload(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewCachedModule builds a CachedModule for a payload, computing its hash
// and size.
func NewCachedModule(name, version string, data []byte, contextID string) *CachedModule {
	now := time.Now()
	return &CachedModule{
		Hash:           HashPayload(data),
		Name:           name,
		Version:        version,
		Data:           data,
		Size:           len(data),
		ContextID:      contextID,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}
