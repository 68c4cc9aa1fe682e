// Package openai adapts an OpenAI-compatible Chat Completions backend to the
// model.Generator interface. It is the usual way to front a locally hosted
// inference server (vLLM, llama.cpp, LM Studio) that speaks the OpenAI wire
// protocol: the backend performs the actual generation and this adapter
// relays streaming deltas into the emit callback.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tinyllm/tinyllm/model"
)

// Options configure the OpenAI generator adapter.
type Options struct {
	// Model is the backend model identifier.
	Model string
	// BaseURL points at the OpenAI-compatible server. Empty uses the SDK
	// default (api.openai.com).
	BaseURL string
	// APIKey, if set, overrides the environment-provided key.
	APIKey string
}

// Generator wraps the OpenAI Chat Completions API behind model.Generator.
type Generator struct {
	client *openai.Client
	opts   Options
}

// New creates a Generator, constructing a client from the options.
func New(optFns ...func(o *Options)) *Generator {
	opts := Options{Model: openai.ChatModelGPT4oMini}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a Generator from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{Model: openai.ChatModelGPT4oMini}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate implements model.Generator. It blocks for the duration of the
// backend stream, forwarding each content delta to emit. An emit error stops
// consumption; the underlying HTTP stream is torn down via ctx.
func (g *Generator) Generate(ctx context.Context, params model.Params, emit func(string) error) error {
	req := openai.ChatCompletionNewParams{
		Model:    g.opts.Model,
		Messages: buildMessages(params.Conversation()),
	}
	if params.MaxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(params.MaxTokens))
	}
	if params.Temperature > 0 {
		req.Temperature = openai.Float(params.Temperature)
	}
	if params.TopP > 0 {
		req.TopP = openai.Float(params.TopP)
	}

	stream := g.client.Chat.Completions.NewStreaming(ctx, req)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai streaming error: %w", err)
	}
	return nil
}

// Info implements model.Generator.
func (g *Generator) Info() model.Info {
	return model.Info{Name: g.opts.Model, Provider: "openai", SupportsTools: true}
}

// buildMessages converts normalized chat messages into OpenAI chat params.
// Function-result turns are folded into user messages so backends without
// native tool-message support can still consume them.
func buildMessages(conv []model.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, msg := range conv {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case "function":
			messages = append(messages, openai.UserMessage(
				fmt.Sprintf("Function '%s' returned:\n%s", msg.Name, msg.Content)))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}
