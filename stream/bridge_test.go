package stream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tokenProducer(tokens ...string) GenerateFunc {
	return func(ctx context.Context, emit func(string) error) error {
		for _, tok := range tokens {
			if err := emit(tok); err != nil {
				return err
			}
		}
		return nil
	}
}

func collect(s *Session) []Chunk {
	var chunks []Chunk
	for c := range s.Chunks() {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestBridgeStreamsTokensInOrder(t *testing.T) {
	b := NewBridge()
	s := b.Start(context.Background(), tokenProducer("Hello", " world", "!"))
	defer s.Close()

	chunks := collect(s)

	require.Len(t, chunks, 4)
	for i, want := range []string{"Hello", " world", "!"} {
		assert.Equal(t, i, chunks[i].Index)
		assert.Equal(t, want, chunks[i].Content)
		assert.Empty(t, chunks[i].FinishReason)
	}
	terminal := chunks[3]
	assert.Equal(t, 3, terminal.Index)
	assert.Empty(t, terminal.Content)
	assert.Equal(t, FinishReasonStop, terminal.FinishReason)
}

func TestBridgeEmptyStream(t *testing.T) {
	b := NewBridge()
	s := b.Start(context.Background(), tokenProducer())
	defer s.Close()

	chunks := collect(s)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, FinishReasonStop, chunks[0].FinishReason)
}

func TestBridgeProducerFailure(t *testing.T) {
	b := NewBridge()
	s := b.Start(context.Background(), func(ctx context.Context, emit func(string) error) error {
		if err := emit("partial"); err != nil {
			return err
		}
		return errors.New("model crashed")
	})
	defer s.Close()

	chunks := collect(s)

	// Failure closes the channel with no terminal chunk.
	require.Len(t, chunks, 1)
	assert.Equal(t, "partial", chunks[0].Content)
	assert.Empty(t, chunks[0].FinishReason)
}

func TestBridgeCloseStopsProducer(t *testing.T) {
	b := NewBridge(WithBufferSize(1))

	stopped := make(chan struct{})
	s := b.Start(context.Background(), func(ctx context.Context, emit func(string) error) error {
		defer close(stopped)
		for i := 0; ; i++ {
			if err := emit("tok"); err != nil {
				return err
			}
		}
	})

	// Drain a few chunks, then walk away like a disconnected client.
	<-s.Chunks()
	<-s.Chunks()
	s.Close()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not observe cancellation")
	}

	// The channel ends without a terminal chunk.
	for c := range s.Chunks() {
		assert.Empty(t, c.FinishReason)
	}
}

func TestBridgeCloseIdempotent(t *testing.T) {
	b := NewBridge()
	s := b.Start(context.Background(), tokenProducer("a"))

	s.Close()
	s.Close()
	s.Close()
}

func TestBridgeParentContextCancellation(t *testing.T) {
	b := NewBridge(WithBufferSize(1))
	ctx, cancel := context.WithCancel(context.Background())

	s := b.Start(ctx, func(ctx context.Context, emit func(string) error) error {
		for {
			if err := emit("tok"); err != nil {
				return err
			}
		}
	})
	defer s.Close()

	<-s.Chunks()
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.Chunks():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not end after parent context cancellation")
		}
	}
}

func TestBridgeConcurrentSessions(t *testing.T) {
	b := NewBridge()

	s1 := b.Start(context.Background(), tokenProducer("one"))
	s2 := b.Start(context.Background(), tokenProducer("two"))
	defer s1.Close()
	defer s2.Close()

	assert.NotEqual(t, s1.ID(), s2.ID())

	c1 := collect(s1)
	c2 := collect(s2)
	require.Len(t, c1, 2)
	require.Len(t, c2, 2)
	assert.Equal(t, "one", c1[0].Content)
	assert.Equal(t, "two", c2[0].Content)
}

func TestNewStreamID(t *testing.T) {
	id := NewStreamID()
	assert.True(t, strings.HasPrefix(id, "stream-"))
	assert.NotEqual(t, id, NewStreamID())
}
