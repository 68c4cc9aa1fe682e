package function

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tinyllm/tinyllm/logging"
)

// Registry is the catalog of callable functions. It is populated at startup
// and effectively immutable afterwards; the mutex exists so a misplaced late
// registration is still safe rather than a data race.
//
// Execute calls for different names run concurrently without interference:
// each call only reads the definition map and then operates on its own
// handler invocation.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Definition
	logger    logging.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registration and execution events.
func WithLogger(logger logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		functions: make(map[string]Definition),
		logger:    logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a function definition to the catalog. Registration is an
// upsert: the last definition registered under a name wins.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	if _, exists := r.functions[def.Name]; exists {
		r.logger.Warn("function re-registered", "function", def.Name)
	}
	r.functions[def.Name] = def
	r.mu.Unlock()

	r.logger.Info("function registered", "function", def.Name)
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.functions[name]
	return def, ok
}

// Execute looks up and invokes the named function with the given arguments.
// It never returns a Go error: unknown names, missing required parameters,
// enum violations, handler errors and handler panics all surface as a Result
// with Success=false. Bytes may already be on the wire by the time a handler
// fails, so the caller must be able to treat every outcome as data.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	def, ok := r.Get(name)
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("Function '%s' not found", name)}
	}

	if res, ok := validateArgs(def, args); !ok {
		r.logger.Warn("function argument validation failed",
			"function", name, "error", res.Error)
		return res
	}

	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	start := time.Now()
	value, err := invoke(ctx, def.Handler, args)
	if err != nil {
		r.logger.Error("function execution failed",
			"function", name, "error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds())
		return Result{Success: false, Error: err.Error()}
	}

	r.logger.Info("function executed",
		"function", name, "duration_ms", time.Since(start).Milliseconds())

	return Result{Success: true, FunctionName: name, Result: value}
}

// invoke runs the handler, converting a panic into an error so a misbehaving
// handler cannot take down the request path.
func invoke(ctx context.Context, h Handler, args map[string]any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.Invoke(ctx, args)
}

// validateArgs checks required parameters and enum constraints. The second
// return value is false when validation failed and the Result should be
// returned to the caller without invoking the handler.
func validateArgs(def Definition, args map[string]any) (Result, bool) {
	for _, name := range sortedParamNames(def.Parameters) {
		param := def.Parameters[name]

		value, present := args[name]
		if !present {
			if param.Required {
				return Result{
					Success: false,
					Error:   fmt.Sprintf("Missing required parameter: %s", name),
				}, false
			}
			continue
		}

		if len(param.Enum) > 0 {
			if !enumAllows(param.Enum, value) {
				return Result{
					Success: false,
					Error:   fmt.Sprintf("Invalid value for parameter %s: %v", name, value),
				}, false
			}
		}
	}
	return Result{}, true
}

func enumAllows(enum []string, value any) bool {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}
	for _, allowed := range enum {
		if s == allowed {
			return true
		}
	}
	return false
}

// All projects the catalog to discovery descriptors, sorted by name.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.functions))
	for _, def := range r.functions {
		out = append(out, Descriptor{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolsSchema converts the catalog into OpenAI-style tool descriptors. The
// transformation is pure; the output order is deterministic (name-sorted).
func (r *Registry) ToolsSchema() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolSchema, 0, len(r.functions))
	for _, def := range r.functions {
		properties := make(map[string]PropertySchema, len(def.Parameters))
		var required []string
		for _, name := range sortedParamNames(def.Parameters) {
			param := def.Parameters[name]
			prop := PropertySchema{
				Type:        param.Type,
				Description: param.Description,
			}
			if prop.Type == "" {
				prop.Type = "string"
			}
			if len(param.Enum) > 0 {
				prop.Enum = param.Enum
			}
			properties[name] = prop
			if param.Required {
				required = append(required, name)
			}
		}
		if required == nil {
			required = []string{}
		}
		out = append(out, ToolSchema{
			Type: "function",
			Function: ToolFunctionSchema{
				Name:        def.Name,
				Description: def.Description,
				Parameters: ObjectSchema{
					Type:       "object",
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Function.Name < out[j].Function.Name })
	return out
}
