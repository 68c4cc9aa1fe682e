// Package stream bridges a blocking, single-shot token generation call into
// an asynchronously consumable, cancellable sequence of token chunks.
//
// The producer side is a GenerateFunc: one blocking call that pushes tokens
// through an emit callback as they are produced. Start launches it on its own
// goroutine and hands the consumer a Session whose channel yields chunks in
// strict generation order with monotonically increasing indices, followed by
// exactly one terminal chunk on normal completion.
//
// Cancellation is cooperative: closing the session cancels the producer's
// context and waits a bounded grace period for it to exit. A producer that
// ignores cancellation past the grace period is abandoned, not forcibly
// terminated; Go offers no goroutine preemption.
package stream
