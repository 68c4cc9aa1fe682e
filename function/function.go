package function

import (
	"context"
	"sort"
	"time"
)

// Parameter describes a single named argument accepted by a function.
type Parameter struct {
	// JSON type of the argument ("string", "number", "integer", "boolean", ...).
	Type string `json:"type"`
	// Human-readable description shown to models.
	Description string `json:"description"`
	// Required arguments must be present in every call.
	Required bool `json:"required"`
	// Enum optionally restricts the argument to a fixed set of values.
	Enum []string `json:"enum,omitempty"`
}

// Handler executes a function call. Implementations may block; they are
// always invoked with a context carrying the per-call deadline, and must
// return promptly once it is cancelled.
type Handler interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc adapts a plain Go function to the Handler interface.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Definition declares a callable function: its catalog entry plus the handler
// that serves it. Definitions are owned exclusively by the Registry.
type Definition struct {
	// Name is the unique key under which the function is registered.
	Name string
	// Description is exposed to models for tool selection.
	Description string
	// Parameters maps argument name to its specification.
	Parameters map[string]Parameter
	// Handler serves calls for this function.
	Handler Handler
	// Timeout bounds a single invocation. Zero means no per-call deadline;
	// handlers doing outbound I/O should set one (5-10s) so a slow external
	// call cannot stall callers indefinitely.
	Timeout time.Duration
}

// Descriptor is the discovery projection of a Definition (no handler).
type Descriptor struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]Parameter `json:"parameters"`
}

// Result is the uniform outcome of Execute. Exactly one of Result/Error is
// meaningful depending on Success.
type Result struct {
	Success      bool   `json:"success"`
	FunctionName string `json:"function_name,omitempty"`
	Result       any    `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ToolSchema is the OpenAI-style tool descriptor projected from a Definition.
type ToolSchema struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the nested function part of a ToolSchema.
type ToolFunctionSchema struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  ObjectSchema `json:"parameters"`
}

// ObjectSchema is a minimal JSON-Schema object describing the argument map.
type ObjectSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes one argument in an ObjectSchema.
type PropertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// sortedParamNames returns the parameter names in deterministic order so
// validation reports the same "first missing" parameter on every call.
func sortedParamNames(params map[string]Parameter) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
