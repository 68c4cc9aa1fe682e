// Package cleanup runs the periodic background jobs that reclaim stale
// uploads and expired cache entries.
//
// The scheduler moves Stopped -> Running -> Stopped. Its two jobs (file
// eviction, cache sweep) tick independently on their own goroutines; a
// failing or panicking job is logged and never halts the scheduler or the
// other job. Nothing here ever runs on a request-serving goroutine.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tinyllm/tinyllm/logging"
)

// FileEvictor reclaims stored files older than maxAge.
type FileEvictor interface {
	EvictOlderThan(maxAge time.Duration) (int, error)
}

// CacheSweeper physically removes expired cache entries.
type CacheSweeper interface {
	ClearExpired() (int, error)
}

// Scheduler drives the two cleanup jobs.
type Scheduler struct {
	files FileEvictor
	cache CacheSweeper

	fileInterval  time.Duration
	cacheInterval time.Duration
	fileMaxAge    time.Duration
	logger        logging.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithFileInterval sets the file eviction period.
func WithFileInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.fileInterval = d }
}

// WithCacheInterval sets the cache sweep period.
func WithCacheInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.cacheInterval = d }
}

// WithFileMaxAge sets the age past which stored files are evicted.
func WithFileMaxAge(d time.Duration) Option {
	return func(s *Scheduler) { s.fileMaxAge = d }
}

// WithLogger sets the logger for job outcomes.
func WithLogger(logger logging.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New returns a stopped scheduler. Defaults: files hourly with a one hour
// max age, cache every six hours.
func New(files FileEvictor, cache CacheSweeper, opts ...Option) *Scheduler {
	s := &Scheduler{
		files:         files,
		cache:         cache,
		fileInterval:  time.Hour,
		cacheInterval: 6 * time.Hour,
		fileMaxAge:    time.Hour,
		logger:        logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start transitions Stopped -> Running and launches both jobs. Calling Start
// on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	s.wg.Add(2)
	go s.loop("file_eviction", s.fileInterval, s.stop, func() error {
		n, err := s.files.EvictOlderThan(s.fileMaxAge)
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info("old files cleaned up", "deleted", n)
		}
		return nil
	})
	go s.loop("cache_sweep", s.cacheInterval, s.stop, func() error {
		n, err := s.cache.ClearExpired()
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info("expired cache entries cleaned up", "removed", n)
		}
		return nil
	})

	s.logger.Info("cleanup scheduler started",
		"file_interval", s.fileInterval, "cache_interval", s.cacheInterval)
}

// Shutdown transitions Running -> Stopped, waiting for in-flight jobs until
// ctx expires. Idempotent; returns ctx.Err() if the wait was cut short.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("cleanup scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("cleanup scheduler shutdown timed out waiting for jobs")
		return ctx.Err()
	}
}

// Running reports whether the scheduler is in the Running state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop ticks until stop closes, running job on every tick. Job failures and
// panics are contained here so one bad run never ends the loop.
func (s *Scheduler) loop(name string, interval time.Duration, stop <-chan struct{}, job func() error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.runJob(name, job)
		}
	}
}

func (s *Scheduler) runJob(name string, job func() error) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("job panic: %v", rec)
			}
		}()
		return job()
	}()
	logging.LogOperation(s.logger, name, start, err)
}
