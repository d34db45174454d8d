package observe

import (
	"context"

	"github.com/lguimbarda/riskstream/ingest/core"
)

// Tap creates a Transformer that invokes fn for each successful value
// passing through, for side effects only. Errors and sentinels pass
// through untouched.
func Tap[T any](fn func(T)) core.Transformer[T, T] {
	return core.Transmit(func(ctx context.Context, in <-chan core.Result[T]) <-chan core.Result[T] {
		out := make(chan core.Result[T])

		go func() {
			defer close(out)

			for res := range in {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if res.IsValue() {
					fn(res.Value())
				}

				select {
				case <-ctx.Done():
					return
				case out <- res:
				}
			}
		}()

		return out
	})
}
