// Package document processes uploaded files into markdown via an opaque
// conversion collaborator, caching successful results by content.
//
// The converter itself (Docling or equivalent: file path in, markdown plus
// page metadata out) is external; this package owns the cache interplay and
// the concurrency of multi-file processing.
package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tinyllm/tinyllm/doccache"
	"github.com/tinyllm/tinyllm/logging"
)

// Converter turns a file on disk into a processed document. Implementations
// may be CPU-intensive and are expected to honor ctx cancellation.
type Converter interface {
	Convert(ctx context.Context, path string) (*doccache.Document, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, path string) (*doccache.Document, error)

// Convert implements Converter.
func (f ConverterFunc) Convert(ctx context.Context, path string) (*doccache.Document, error) {
	return f(ctx, path)
}

// Processor combines a Converter with the document cache. Failed conversions
// are never cached, so the next request for the same content retries.
type Processor struct {
	converter Converter
	cache     *doccache.Cache
	logger    logging.Logger
}

// NewProcessor returns a Processor. logger may be nil.
func NewProcessor(converter Converter, cache *doccache.Cache, logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Processor{converter: converter, cache: cache, logger: logger}
}

// Process returns the processed document for path, serving from the cache
// when the content is already known. The second return reports whether the
// result came from the cache.
func (p *Processor) Process(ctx context.Context, path string) (*doccache.Document, bool, error) {
	if doc, ok := p.cache.Get(path); ok {
		return doc, true, nil
	}

	start := time.Now()
	doc, err := p.converter.Convert(ctx, path)
	if err != nil {
		p.logger.Error("document conversion failed", "path", path, "error", err.Error())
		return nil, false, fmt.Errorf("convert %s: %w", path, err)
	}

	p.logger.Info("document converted",
		"filename", doc.Metadata.Filename,
		"chars", doc.Metadata.ContentLength,
		"duration_ms", time.Since(start).Milliseconds())

	// Caching is best-effort: a cache write failure degrades to skipping the
	// cache, never to failing the request.
	if err := p.cache.Set(path, doc); err != nil {
		p.logger.Warn("caching processed document failed", "path", path, "error", err.Error())
	}
	return doc, false, nil
}

// Outcome is the per-file result of ProcessAll.
type Outcome struct {
	Path     string
	Document *doccache.Document
	Cached   bool
	Err      error
}

// ProcessAll processes several files concurrently, one goroutine per file,
// and returns outcomes in input order. Individual failures do not affect the
// other files.
func (p *Processor) ProcessAll(ctx context.Context, paths []string) []Outcome {
	outcomes := make([]Outcome, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			doc, cached, err := p.Process(ctx, path)
			outcomes[i] = Outcome{Path: path, Document: doc, Cached: cached, Err: err}
		}(i, path)
	}
	wg.Wait()

	succeeded := 0
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
		}
	}
	p.logger.Info("batch processing finished", "total", len(paths), "succeeded", succeeded)

	return outcomes
}
