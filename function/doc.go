// Package function implements the callable-function subsystem that lets the
// model invoke structured capabilities (weather lookups, web search, side
// effects) with validated arguments, consistent error handling and a
// JSON-Schema-shaped catalog for LLM guidance.
//
// A Registry is populated once at startup and treated as read-only for the
// remainder of the process. Execute never returns a Go error: every outcome,
// including handler panics, surfaces as a structured Result so the transport
// layer can map it to a response without special cases.
package function
