// Package model defines the opaque generation collaborator: a blocking
// single-shot Generate call that pushes tokens through a callback as they
// are produced. The stream bridge consumes exactly this shape.
//
// Whether an implementation tolerates concurrent Generate calls is a
// property of the backing engine, not guaranteed here; integrators whose
// engine does not must serialize calls with a single generation lock.
package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name identifies the function for role "function" messages.
	Name string `json:"name,omitempty"`
}

// Params are the normalized generation parameters. Zero values mean
// "backend default"; the application context fills them from configuration.
type Params struct {
	// Prompt is used when Messages is empty: a single user turn.
	Prompt   string    `json:"prompt,omitempty"`
	Messages []Message `json:"messages,omitempty"`

	MaxTokens         int     `json:"max_tokens,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	TopK              int     `json:"top_k,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
}

// Conversation returns Messages, or Prompt wrapped as a single user turn.
func (p Params) Conversation() []Message {
	if len(p.Messages) > 0 {
		return p.Messages
	}
	return []Message{{Role: "user", Content: p.Prompt}}
}

// Info contains metadata about a generator implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Generator is the minimal interface the serving core requires of a model.
// Generate blocks until generation finishes, invoking emit once per produced
// token in order. An error returned from emit is the cooperative stop
// signal: the implementation must stop generating and return promptly.
type Generator interface {
	Generate(ctx context.Context, params Params, emit func(token string) error) error
	Info() Info
}

// MockGenerator is a lightweight in-memory Generator useful for tests and
// examples. It streams canned completions token by token.
type MockGenerator struct {
	info      Info
	responses map[string]string
	delay     time.Duration
	err       error
}

// NewMockGenerator constructs a MockGenerator.
func NewMockGenerator(name string) *MockGenerator {
	return &MockGenerator{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockGenerator) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetDelay inserts a pause before each emitted token, for cancellation tests.
func (m *MockGenerator) SetDelay(d time.Duration) { m.delay = d }

// FailWith makes Generate return err after emitting nothing.
func (m *MockGenerator) FailWith(err error) { m.err = err }

// Generate implements Generator; it splits the canned completion on spaces
// and emits one token per word.
func (m *MockGenerator) Generate(ctx context.Context, params Params, emit func(string) error) error {
	if m.err != nil {
		return m.err
	}

	conv := params.Conversation()
	input := conv[len(conv)-1].Content

	full, ok := m.responses[input]
	if !ok {
		full = fmt.Sprintf("Mock response to: %s", input)
	}

	for i, word := range strings.Fields(full) {
		if m.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.delay):
			}
		}
		token := word
		if i > 0 {
			token = " " + word
		}
		if err := emit(token); err != nil {
			return err
		}
	}
	return nil
}

// Info implements Generator.
func (m *MockGenerator) Info() Info { return m.info }
