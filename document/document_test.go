package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyllm/tinyllm/doccache"
)

func newTestCache(t *testing.T) *doccache.Cache {
	t.Helper()
	c, err := doccache.New(t.TempDir(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type countingConverter struct {
	calls atomic.Int64
	fail  error
}

func (c *countingConverter) Convert(ctx context.Context, path string) (*doccache.Document, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return &doccache.Document{
		Markdown: "converted " + filepath.Base(path),
		Metadata: doccache.Metadata{Filename: filepath.Base(path), Format: "txt"},
	}, nil
}

func TestProcessConvertsAndCaches(t *testing.T) {
	conv := &countingConverter{}
	p := NewProcessor(conv, newTestCache(t), nil)
	path := writeFile(t, "doc.txt", "document body")

	doc, cached, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "converted doc.txt", doc.Markdown)
	assert.Equal(t, int64(1), conv.calls.Load())

	doc, cached, err = p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, cached, "second call must be served from cache")
	assert.Equal(t, "converted doc.txt", doc.Markdown)
	assert.Equal(t, int64(1), conv.calls.Load(), "converter must not run on a cache hit")
}

func TestProcessFailureIsNotCached(t *testing.T) {
	conv := &countingConverter{fail: errors.New("corrupt file")}
	p := NewProcessor(conv, newTestCache(t), nil)
	path := writeFile(t, "bad.txt", "contents")

	_, _, err := p.Process(context.Background(), path)
	require.Error(t, err)

	// After the converter recovers, the same content converts again instead
	// of yielding a cached failure.
	conv.fail = nil
	doc, cached, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "converted bad.txt", doc.Markdown)
	assert.Equal(t, int64(2), conv.calls.Load())
}

func TestProcessSameContentDifferentPath(t *testing.T) {
	conv := &countingConverter{}
	p := NewProcessor(conv, newTestCache(t), nil)
	a := writeFile(t, "a.txt", "shared content")
	b := writeFile(t, "b.txt", "shared content")

	_, _, err := p.Process(context.Background(), a)
	require.NoError(t, err)

	_, cached, err := p.Process(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, cached, "content-addressed cache must hit across paths")
	assert.Equal(t, int64(1), conv.calls.Load())
}

func TestProcessAll(t *testing.T) {
	conv := &countingConverter{}
	p := NewProcessor(conv, newTestCache(t), nil)

	paths := []string{
		writeFile(t, "one.txt", "one"),
		writeFile(t, "two.txt", "two"),
		writeFile(t, "three.txt", "three"),
	}

	outcomes := p.ProcessAll(context.Background(), paths)

	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, paths[i], o.Path, "outcomes keep input order")
		require.NoError(t, o.Err)
		assert.Equal(t, "converted "+filepath.Base(paths[i]), o.Document.Markdown)
	}
}

func TestProcessAllPartialFailure(t *testing.T) {
	cache := newTestCache(t)
	failing := writeFile(t, "bad.txt", "bad")
	conv := ConverterFunc(func(ctx context.Context, path string) (*doccache.Document, error) {
		if path == failing {
			return nil, errors.New("unreadable")
		}
		return &doccache.Document{Markdown: "ok"}, nil
	})
	p := NewProcessor(conv, cache, nil)

	good := writeFile(t, "good.txt", "good")
	outcomes := p.ProcessAll(context.Background(), []string{failing, good})

	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	require.NoError(t, outcomes[1].Err)
	assert.Equal(t, "ok", outcomes[1].Document.Markdown)
}
