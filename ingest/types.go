package ingest

import (
	"context"

	"github.com/lguimbarda/riskstream/ingest/core"
)

// Type aliases for the core stream abstractions, so callers composing
// their own pipeline stages do not need to import core directly.
type (
	// Result represents the outcome of one pipeline step.
	Result[T any] = core.Result[T]

	// Stream represents a flow of data with methods for consuming it.
	Stream[T any] = core.Stream[T]

	// Transformer transforms a Stream of type IN into a Stream of type OUT.
	Transformer[IN, OUT any] = core.Transformer[IN, OUT]
)

// ErrEndOfStream is the sentinel error indicating normal stream termination.
var ErrEndOfStream = core.ErrEndOfStream

// Ok creates a successful Result containing the given value.
func Ok[T any](value T) Result[T] {
	return core.Ok(value)
}

// Err creates an error Result for recoverable processing failures.
func Err[T any](err error) Result[T] {
	return core.Err[T](err)
}

// Collect gathers all Results (including errors) from a stream.
func Collect[T any](ctx context.Context, stream Stream[T]) []Result[T] {
	return core.Collect(ctx, stream)
}
