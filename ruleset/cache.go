package ruleset

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache manages the local rule-bundle cache: a sqlite database of entry
// metadata (checksum, expiry) alongside the extracted bundle directories on
// disk that the metadata points at.
type Cache struct {
	dir string
	db  *sql.DB
}

// NewCache opens (creating if necessary) the sqlite-backed cache rooted at
// cacheDir.
func NewCache(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(cacheDir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	category   TEXT NOT NULL,
	bundle     TEXT NOT NULL,
	path       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (category, bundle)
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{dir: cacheDir, db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get retrieves a cached ruleset's extracted path if its entry is present,
// unexpired, and matches expectedChecksum.
func (c *Cache) Get(spec *RulesetSpec, expectedChecksum string) (string, error) {
	var path, checksum string
	var expiresAt int64

	row := c.db.QueryRow(
		`SELECT path, checksum, expires_at FROM cache_entries WHERE category = ? AND bundle = ?`,
		spec.Category, spec.Bundle,
	)
	if err := row.Scan(&path, &checksum, &expiresAt); err != nil {
		return "", fmt.Errorf("cache miss: %w", err)
	}

	if time.Now().After(time.Unix(expiresAt, 0)) {
		return "", fmt.Errorf("cache expired")
	}
	if checksum != expectedChecksum {
		return "", fmt.Errorf("checksum mismatch")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("cached path missing")
	}

	return path, nil
}

// Set records a cache entry for spec, extracted at extractedPath and valid
// for ttl.
func (c *Cache) Set(spec *RulesetSpec, extractedPath, checksum string, ttl time.Duration) error {
	now := time.Now()
	_, err := c.db.Exec(
		`INSERT INTO cache_entries (category, bundle, path, checksum, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(category, bundle) DO UPDATE SET
			path = excluded.path, checksum = excluded.checksum,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		spec.Category, spec.Bundle, extractedPath, checksum, now.Unix(), now.Add(ttl).Unix(),
	)
	return err
}

// Invalidate removes a cached ruleset's entry and extracted directory.
func (c *Cache) Invalidate(spec *RulesetSpec) error {
	if _, err := c.db.Exec(
		`DELETE FROM cache_entries WHERE category = ? AND bundle = ?`,
		spec.Category, spec.Bundle,
	); err != nil {
		return err
	}

	return os.RemoveAll(c.extractedPath(spec))
}

func (c *Cache) extractedPath(spec *RulesetSpec) string {
	return filepath.Join(c.dir, spec.Category, spec.Bundle)
}

// VerifyChecksum calculates the sha256 checksum of a file and compares it
// against expectedChecksum.
func VerifyChecksum(filePath, expectedChecksum string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	actual := fmt.Sprintf("%x", h.Sum(nil))
	if actual != expectedChecksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedChecksum, actual)
	}
	return nil
}
