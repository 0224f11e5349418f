package modcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"
)

// cborEncMode uses canonical encoding so a record's bytes are a
// deterministic function of its contents.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("modcache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// moduleRecord is the persisted form of a CachedModule. Access metadata
// (LastAccessedAt, AccessCount) and the owning context id are runtime
// state and are deliberately not persisted: a restored module starts cold
// and unloaded.
type moduleRecord struct {
	Hash      string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	Version   string `cbor:"3,keyasint"`
	Data      []byte `cbor:"4,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"` // unix milliseconds
}

// SQLiteStore persists modules in a single sqlite table keyed by content
// hash, with the record body CBOR-encoded in a blob column.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) a module store at path.
// Use ":memory:" for an ephemeral store in tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("modcache: opening store: %w", err)
	}

	// Tolerate concurrent writers from multiple runtime processes.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("modcache: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS modules (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		record BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("modcache: creating table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save upserts a module record.
func (s *SQLiteStore) Save(ctx context.Context, m *CachedModule) error {
	rec := moduleRecord{
		Hash:      m.Hash,
		Name:      m.Name,
		Version:   m.Version,
		Data:      m.Data,
		CreatedAt: m.CreatedAt.UnixMilli(),
	}
	blob, err := cborEncMode.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("modcache: encoding record %s: %w", m.Hash, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO modules (hash, name, created_at, record) VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET name=excluded.name,
		   created_at=excluded.created_at, record=excluded.record`,
		m.Hash, m.Name, rec.CreatedAt, blob)
	if err != nil {
		return fmt.Errorf("modcache: saving %s: %w", m.Hash, err)
	}
	return nil
}

// Load reads a module record by hash. Returns ErrNotFound for unknown
// hashes.
func (s *SQLiteStore) Load(ctx context.Context, hash string) (*CachedModule, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM modules WHERE hash = ?", hash).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("modcache: loading %s: %w", hash, err)
	}

	var rec moduleRecord
	if err := cbor.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("modcache: decoding record %s: %w", hash, err)
	}
	created := time.UnixMilli(rec.CreatedAt)
	return &CachedModule{
		Hash:           rec.Hash,
		Name:           rec.Name,
		Version:        rec.Version,
		Data:           rec.Data,
		Size:           len(rec.Data),
		CreatedAt:      created,
		LastAccessedAt: created,
	}, nil
}

// Delete removes a module record. Deleting an unknown hash is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, hash string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE hash = ?", hash); err != nil {
		return fmt.Errorf("modcache: deleting %s: %w", hash, err)
	}
	return nil
}

// List returns every stored hash, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT hash FROM modules ORDER BY created_at, hash")
	if err != nil {
		return nil, fmt.Errorf("modcache: listing store: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("modcache: scanning row: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// Stats reports the store's module count and total payload size.
func (s *SQLiteStore) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(record)), 0) FROM modules").
		Scan(&stats.Modules, &stats.TotalSize)
	if err != nil {
		return StoreStats{}, fmt.Errorf("modcache: store stats: %w", err)
	}
	return stats, nil
}

// Cleanup deletes modules created before now-olderThan and returns how
// many rows were removed.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM modules WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("modcache: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("modcache: cleanup row count: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
