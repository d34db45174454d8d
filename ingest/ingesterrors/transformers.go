package ingesterrors

import (
	"context"

	"github.com/lguimbarda/riskstream/ingest/core"
)

// OnError creates a Transformer that calls a handler function when an error
// result passes through. The handler is called for side effects; the error
// still propagates downstream.
func OnError[T any](handler func(error)) core.Transformer[T, T] {
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

				if res.IsError() {
					handler(res.Error())
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

// MapErrors creates a Transformer that rewrites error results using the
// mapping function. Values and sentinels pass through unchanged.
func MapErrors[T any](mapper func(error) error) core.Transformer[T, T] {
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

				if res.IsError() {
					res = core.Err[T](mapper(res.Error()))
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
