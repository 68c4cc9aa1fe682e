package doccache

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/tinyllm/tinyllm/logging"
)

// Metadata describes a processed document.
type Metadata struct {
	Filename      string `json:"filename"`
	Title         string `json:"title,omitempty"`
	Format        string `json:"format"`
	PageCount     int    `json:"page_count,omitempty"`
	ContentLength int    `json:"content_length"`
}

// Document is the cached result of a successful document conversion.
type Document struct {
	Markdown string   `json:"markdown"`
	Metadata Metadata `json:"metadata"`
}

// Stats summarizes cache occupancy. Volume is the approximate stored size in
// bytes of the serialized documents.
type Stats struct {
	Count     int64  `json:"count"`
	Volume    int64  `json:"volume"`
	Directory string `json:"directory"`
}

// Cache is the content-addressed document cache. Safe for concurrent use;
// concurrency control on the stored entries is delegated to SQLite.
type Cache struct {
	db     *sql.DB
	dir    string
	ttl    time.Duration
	logger logging.Logger
	now    func() time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithLogger sets the logger for cache events.
func WithLogger(logger logging.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New opens (or creates) the cache database under cacheDir. Entries expire
// ttl after insertion.
func New(cacheDir string, ttl time.Duration, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "documents.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	c := &Cache{
		db:     db,
		dir:    cacheDir,
		ttl:    ttl,
		logger: logging.NoOpLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		size        INTEGER NOT NULL,
		inserted_at INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_expires ON documents(expires_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Key derives the cache key for the file at path: "doc_" plus the BLAKE3
// hash of the file's bytes. When the file cannot be read the key falls back
// to a hash of the path string — lower fidelity (renames of the same content
// no longer collide onto one entry) but still stable per path.
func (c *Cache) Key(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return c.fallbackKey(path, err)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return c.fallbackKey(path, err)
	}
	return "doc_" + hex.EncodeToString(hasher.Sum(nil))
}

func (c *Cache) fallbackKey(path string, cause error) string {
	c.logger.Warn("content hash failed, falling back to path key",
		"path", path, "error", cause.Error())
	sum := blake3.Sum256([]byte(path))
	return "doc_" + hex.EncodeToString(sum[:])
}

// Get returns the cached document for the file at path, or a miss. An entry
// whose TTL has passed is a miss even if still physically present; physical
// removal is left to ClearExpired. Read failures degrade to a miss.
func (c *Cache) Get(path string) (*Document, bool) {
	key := c.Key(path)

	var (
		value     string
		expiresAt int64
	)
	err := c.db.QueryRow(
		`SELECT value, expires_at FROM documents WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false
	case err != nil:
		c.logger.Error("cache read failed", "key", key, "error", err.Error())
		return nil, false
	}

	if c.now().UnixMilli() >= expiresAt {
		return nil, false
	}

	var doc Document
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		c.logger.Error("cache entry corrupt", "key", key, "error", err.Error())
		return nil, false
	}

	c.logger.Debug("cache hit", "key", key, "filename", doc.Metadata.Filename)
	return &doc, true
}

// Set stores the processed document for the file at path. Only successful
// conversions should be cached; a failed conversion must stay uncached so
// the next request retries it. Last write wins for concurrent sets of the
// same key.
func (c *Cache) Set(path string, doc *Document) error {
	key := c.Key(path)

	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	now := c.now()
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO documents (key, value, size, inserted_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key, string(value), len(value), now.UnixMilli(), now.Add(c.ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}

	c.logger.Debug("document cached", "key", key, "bytes", len(value))
	return nil
}

// ClearExpired physically removes entries whose TTL has passed and returns
// the number removed. Invoked by the cleanup scheduler; not on the request
// hot path.
func (c *Cache) ClearExpired() (int, error) {
	res, err := c.db.Exec(`DELETE FROM documents WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Info("expired cache entries removed", "count", n)
	}
	return int(n), nil
}

// ClearAll removes every entry. Administrative operation.
func (c *Cache) ClearAll() error {
	if _, err := c.db.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	c.logger.Info("cache cleared")
	return nil
}

// Stats reports entry count and approximate storage volume.
func (c *Cache) Stats() Stats {
	stats := Stats{Directory: c.dir}
	err := c.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM documents`,
	).Scan(&stats.Count, &stats.Volume)
	if err != nil {
		c.logger.Error("cache stats failed", "error", err.Error())
	}
	return stats
}
