// Package tinyllm provides the serving core for a small local LLM service:
// token streaming with cooperative cancellation, a validated function-calling
// registry, a content-addressed document cache, managed file uploads and
// background cleanup.
//
// The subpackages are assembled by package app into a single explicit
// application context; see examples/ for runnable usage.
package tinyllm
