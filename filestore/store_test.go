package filestore

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), 10*1024*1024, []string{"pdf", ".docx", "TXT", "md"})
	require.NoError(t, err)
	return s
}

func TestValidate(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.Validate("report.pdf", 1024))
	assert.NoError(t, s.Validate("notes.TXT", 1024), "extension match is case-insensitive")
	assert.NoError(t, s.Validate("doc.docx", 10*1024*1024), "exactly at the ceiling is allowed")

	err := s.Validate("huge.pdf", 10*1024*1024+1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "huge.pdf", verr.Filename)
	assert.Equal(t, "file size exceeds 10MB limit", verr.Reason)

	err = s.Validate("script.exe", 1024)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file type .exe not supported", verr.Reason)

	err = s.Validate("noextension", 1024)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file type . not supported", verr.Reason)
}

func TestSaveNaming(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save([]byte("file content"), "My Report.pdf")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file content", string(data))

	name := filepath.Base(path)
	pattern := regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-f]{8}_My Report\.pdf$`)
	assert.Regexp(t, pattern, name)
}

func TestSaveDistinguishesContent(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC) }

	p1, err := s.Save([]byte("content A"), "same.txt")
	require.NoError(t, err)
	p2, err := s.Save([]byte("content B"), "same.txt")
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2, "same second, same name, different bytes must not collide")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"spaces kept", "my report.pdf", "my report.pdf"},
		{"unix traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\doc.pdf`, "doc.pdf"},
		{"shell chars", "a;rm -rf$(x).txt", "arm -rfx.txt"},
		{"non-ascii stripped", "résumé.pdf", "rsum.pdf"},
		{"empty", "", "upload"},
		{"dot", ".", "upload"},
		{"only unsafe", "<>:|?*", "upload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilenameTruncation(t *testing.T) {
	long := strings.Repeat("a", 300) + ".pdf"

	got := SanitizeFilename(long)

	assert.Len(t, got, 200)
	assert.True(t, strings.HasSuffix(got, ".pdf"), "extension survives truncation")
}

func TestEvictOlderThan(t *testing.T) {
	s := newTestStore(t)

	oldPath, err := s.Save([]byte("old"), "old.txt")
	require.NoError(t, err)
	freshPath, err := s.Save([]byte("fresh"), "fresh.txt")
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))
	recent := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(freshPath, recent, recent))

	deleted, err := s.EvictOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, freshPath)
}

func TestEvictSkipsDirectories(t *testing.T) {
	s := newTestStore(t)
	sub := filepath.Join(s.Dir(), "subdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(sub, past, past))

	deleted, err := s.EvictOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.DirExists(t, sub)
}

func TestStat(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save([]byte("hello"), "hello.txt")
	require.NoError(t, err)

	info := s.Stat(path)
	assert.True(t, info.Exists)
	assert.Equal(t, filepath.Base(path), info.Name)
	assert.Equal(t, int64(5), info.Size)
	assert.WithinDuration(t, time.Now(), info.Modified, time.Minute)

	missing := s.Stat(filepath.Join(s.Dir(), "nope.txt"))
	assert.False(t, missing.Exists)
}
