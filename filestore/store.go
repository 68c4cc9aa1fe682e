// Package filestore validates and persists uploaded files and reclaims aged
// ones.
//
// Stored names have the form <timestamp>_<hash8>_<sanitizedName>: the
// timestamp supports chronological eviction, the short content hash avoids
// collisions between simultaneous uploads of different content under the
// same name, and the sanitized original name keeps listings readable.
package filestore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/tinyllm/tinyllm/logging"
)

// maxFilenameLen bounds sanitized names, preserving the extension.
const maxFilenameLen = 200

// ValidationError reports why an upload was rejected.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid upload %q: %s", e.Filename, e.Reason)
}

var unsafeChars = regexp.MustCompile(`[^\w\s.-]`)

// Store persists uploads under a single directory.
type Store struct {
	dir         string
	maxSize     int64
	allowedExts map[string]struct{}
	logger      logging.Logger
	now         func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger for store events.
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates the upload directory if needed and returns a Store. Extensions
// are matched case-insensitively and without the leading dot.
func New(uploadDir string, maxSize int64, allowedExts []string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	exts := make(map[string]struct{}, len(allowedExts))
	for _, ext := range allowedExts {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	s := &Store{
		dir:         uploadDir,
		maxSize:     maxSize,
		allowedExts: exts,
		logger:      logging.NoOpLogger{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.dir }

// Validate rejects uploads whose size exceeds the ceiling or whose extension
// is not on the allow-list. Returns a *ValidationError describing the reason.
func (s *Store) Validate(filename string, size int64) error {
	if size > s.maxSize {
		return &ValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("file size exceeds %dMB limit", s.maxSize/(1024*1024)),
		}
	}
	ext := extension(filename)
	if _, ok := s.allowedExts[ext]; !ok {
		return &ValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("file type .%s not supported", ext),
		}
	}
	return nil
}

// Save writes content under a unique name derived from the current time, a
// short content hash and the sanitized original filename, and returns the
// stored path. Callers are expected to have run Validate first.
func (s *Store) Save(content []byte, filename string) (string, error) {
	sum := blake3.Sum256(content)
	shortHash := hex.EncodeToString(sum[:4])
	timestamp := s.now().Format("20060102_150405")

	name := fmt.Sprintf("%s_%s_%s", timestamp, shortHash, SanitizeFilename(filename))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	s.logger.Info("file saved", "name", name, "bytes", len(content))
	return path, nil
}

// SanitizeFilename strips directory components, removes characters outside a
// safe set and truncates overlong names while preserving the extension.
func SanitizeFilename(filename string) string {
	// Base of both separator conventions; uploads may come from any client OS.
	filename = filepath.Base(filepath.ToSlash(filename))
	filename = unsafeChars.ReplaceAllString(filename, "")

	if filename == "" || filename == "." || filename == ".." {
		return "upload"
	}

	if len(filename) > maxFilenameLen {
		ext := filepath.Ext(filename)
		if len(ext) > maxFilenameLen/2 {
			ext = ""
		}
		filename = filename[:maxFilenameLen-len(ext)] + ext
	}
	return filename
}

// EvictOlderThan deletes stored files whose modification time precedes
// now-maxAge and returns the number deleted. Failures on individual files
// are logged and do not abort the scan.
func (s *Store) EvictOlderThan(maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("scan upload dir: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("stat failed during eviction", "name", entry.Name(), "error", err.Error())
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn("delete failed during eviction", "name", entry.Name(), "error", err.Error())
			continue
		}
		deleted++
		s.logger.Debug("old file deleted", "name", entry.Name())
	}

	if deleted > 0 {
		s.logger.Info("file eviction completed", "deleted", deleted)
	}
	return deleted, nil
}

// Info describes a stored file.
type Info struct {
	Exists   bool      `json:"exists"`
	Name     string    `json:"name,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Modified time.Time `json:"modified,omitempty"`
}

// Stat returns information about the file at path.
func (s *Store) Stat(path string) Info {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Info{Exists: false}
	}
	if err != nil {
		s.logger.Warn("stat failed", "path", path, "error", err.Error())
		return Info{Exists: false}
	}
	return Info{
		Exists:   true,
		Name:     fi.Name(),
		Size:     fi.Size(),
		Modified: fi.ModTime(),
	}
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
