package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyllm/tinyllm/logging"
)

// FinishReasonStop marks the terminal chunk of a normally completed stream.
const FinishReasonStop = "stop"

// DefaultGracePeriod bounds how long Close waits for the producer to exit
// after cancellation before abandoning it.
const DefaultGracePeriod = time.Second

// Chunk is one record of the token stream. Token chunks carry Content and an
// empty FinishReason; the single terminal chunk carries FinishReason and no
// content.
type Chunk struct {
	Index        int    `json:"index"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// GenerateFunc is the blocking single-shot generation call. It must invoke
// emit once per token, in order, and treat an emit error as the cooperative
// stop signal: return promptly without emitting further tokens.
type GenerateFunc func(ctx context.Context, emit func(token string) error) error

// Bridge turns GenerateFuncs into Sessions. A single Bridge is shared by all
// requests; it carries only configuration.
type Bridge struct {
	gracePeriod time.Duration
	bufferSize  int
	logger      logging.Logger
}

// BridgeOption customizes a Bridge.
type BridgeOption func(*Bridge)

// WithGracePeriod sets the bounded wait for producer exit on cancellation.
func WithGracePeriod(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.gracePeriod = d }
}

// WithBufferSize sets the chunk channel capacity.
func WithBufferSize(n int) BridgeOption {
	return func(b *Bridge) { b.bufferSize = n }
}

// WithLogger sets the logger for stream lifecycle events.
func WithLogger(logger logging.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = logger }
}

// NewBridge returns a Bridge with a 1s grace period and a small bounded
// chunk buffer.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		gracePeriod: DefaultGracePeriod,
		bufferSize:  32,
		logger:      logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.bufferSize < 1 {
		b.bufferSize = 1
	}
	return b
}

// Session is one active stream: the background generation goroutine plus the
// bounded channel the consumer drains. A Session is not restartable.
type Session struct {
	id     string
	chunks chan Chunk
	cancel context.CancelFunc
	done   chan struct{}
	grace  time.Duration
	logger logging.Logger

	closeOnce sync.Once
}

// Start launches fn on its own goroutine and returns the session for
// consuming its tokens. The producer observes cancellation of ctx and of
// Session.Close through the context passed to fn.
func (b *Bridge) Start(ctx context.Context, fn GenerateFunc) *Session {
	genCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:     NewStreamID(),
		chunks: make(chan Chunk, b.bufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
		grace:  b.gracePeriod,
		logger: b.logger,
	}

	b.logger.Debug("stream started", "stream_id", s.id)
	go s.run(genCtx, fn)

	return s
}

// ID returns the stream identifier.
func (s *Session) ID() string { return s.id }

// Chunks returns the channel of token chunks. It is closed when the stream
// ends for any reason: normal completion (after the terminal chunk),
// generation failure, or cancellation.
func (s *Session) Chunks() <-chan Chunk { return s.chunks }

// Close stops the session: it signals the producer to stop and waits up to
// the grace period for it to exit. A producer that does not exit in time is
// abandoned so the request path is never blocked on it. Close is idempotent
// and safe to call concurrently with consumption.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(s.grace):
			s.logger.Warn("generation did not stop within grace period, abandoning",
				"stream_id", s.id, "grace", s.grace)
		}
	})
}

// run drives the producer and owns the chunk channel. Channel close is the
// only end-of-stream signal the consumer needs.
func (s *Session) run(ctx context.Context, fn GenerateFunc) {
	defer close(s.done)
	defer close(s.chunks)

	index := 0
	emit := func(token string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.chunks <- Chunk{Index: index, Content: token}:
			index++
			return nil
		}
	}

	if err := fn(ctx, emit); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			s.logger.Debug("stream cancelled", "stream_id", s.id, "tokens", index)
			return
		}
		// Bytes already flushed to the client cannot be retracted, so the
		// failure ends the stream instead of propagating as an error.
		s.logger.Error("generation failed mid-stream",
			"stream_id", s.id, "tokens", index, "error", err.Error())
		return
	}

	select {
	case <-ctx.Done():
	case s.chunks <- Chunk{Index: index, FinishReason: FinishReasonStop}:
	}
}

// NewStreamID returns a unique stream identifier.
func NewStreamID() string {
	return "stream-" + uuid.NewString()
}
