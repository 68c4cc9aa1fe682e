// Package anthropic adapts the Anthropic Messages API to the model.Generator
// interface, streaming text deltas into the emit callback.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tinyllm/tinyllm/model"
)

const defaultMaxTokens = 1024

// Options configure the Anthropic generator adapter.
type Options struct {
	Model  anthropic.Model
	APIKey string
}

// Generator wraps the Anthropic Messages API behind model.Generator.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

// New creates a Generator, constructing a client from the options.
func New(optFns ...func(o *Options)) *Generator {
	opts := Options{Model: anthropic.ModelClaude3_5Sonnet20241022}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Generator{client: &client, opts: opts}
}

// NewFromClient creates a Generator from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{Model: anthropic.ModelClaude3_5Sonnet20241022}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate implements model.Generator. It blocks for the duration of the
// message stream, forwarding each text delta to emit.
func (g *Generator) Generate(ctx context.Context, params model.Params, emit func(string) error) error {
	maxTokens := int64(params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := anthropic.MessageNewParams{
		Model:     g.opts.Model,
		MaxTokens: maxTokens,
	}
	if params.Temperature > 0 {
		req.Temperature = anthropic.Float(params.Temperature)
	}
	if params.TopP > 0 {
		req.TopP = anthropic.Float(params.TopP)
	}

	for _, msg := range params.Conversation() {
		switch msg.Role {
		case "system":
			req.System = append(req.System, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			req.Messages = append(req.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case "function":
			req.Messages = append(req.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Function '%s' returned:\n%s", msg.Name, msg.Content))))
		default:
			req.Messages = append(req.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	stream := g.client.Messages.NewStreaming(ctx, req)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if err := emit(delta.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic streaming error: %w", err)
	}
	return nil
}

// Info implements model.Generator.
func (g *Generator) Info() model.Info {
	return model.Info{Name: string(g.opts.Model), Provider: "anthropic", SupportsTools: true}
}
