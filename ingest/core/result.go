package core

import "errors"

// Result represents the outcome of one step of the ingest pipeline.
// It exists in one of three states:
//   - Value: successful processing result (IsValue() returns true)
//   - Error: processing failure that is non-fatal (IsError() returns true)
//   - Sentinel: stream control signal like end-of-stream (IsSentinel() returns true)
//
// Errors are recoverable and the stream continues processing subsequent items.
// Sentinels are control signals that may carry optional context via an error value.
type Result[OUT any] struct {
	value      OUT
	err        error
	isSentinel bool
}

// NewResult creates a Result with explicit control over all fields.
// Prefer Ok(), Err(), Sentinel(), or EndOfStream() for common cases.
func NewResult[OUT any](value OUT, err error, isSentinel bool) Result[OUT] {
	return Result[OUT]{value: value, err: err, isSentinel: isSentinel}
}

// Ok creates a successful Result containing the given value.
func Ok[OUT any](value OUT) Result[OUT] {
	return Result[OUT]{value: value, err: nil, isSentinel: false}
}

// Err creates an error Result. The stream will continue processing;
// use this for recoverable errors that should be propagated downstream.
func Err[OUT any](err error) Result[OUT] {
	var zero OUT
	return Result[OUT]{value: zero, err: err, isSentinel: false}
}

// Sentinel creates a sentinel Result with an optional descriptive error.
// Sentinels signal stream control conditions. Use EndOfStream() for the
// common end-of-stream case.
func Sentinel[OUT any](err error) Result[OUT] {
	var zero OUT
	return Result[OUT]{value: zero, err: err, isSentinel: true}
}

// ErrEndOfStream is the sentinel error indicating normal stream termination.
// The feed source emits it after the HTTP body is exhausted, which is how
// downstream stages distinguish natural exhaustion from cancellation.
var ErrEndOfStream = errors.New("end of stream")

// EndOfStream creates a sentinel Result indicating the stream has ended normally.
func EndOfStream[OUT any]() Result[OUT] {
	var zero OUT
	return Result[OUT]{value: zero, err: ErrEndOfStream, isSentinel: true}
}

// IsValue returns true if this Result contains a successful value.
func (r Result[OUT]) IsValue() bool {
	return r.err == nil && !r.isSentinel
}

// IsSentinel returns true if this Result is a sentinel (control signal).
func (r Result[OUT]) IsSentinel() bool {
	return r.isSentinel
}

// IsError returns true if this Result contains a processing error.
// Errors are non-fatal; the stream continues processing subsequent items.
func (r Result[OUT]) IsError() bool {
	return r.err != nil && !r.isSentinel
}

// Value returns the contained value. Only meaningful when IsValue() is true.
func (r Result[OUT]) Value() OUT {
	return r.value
}

// Error returns the error if this is an error Result.
// Returns nil for value Results and sentinels (use Sentinel() for sentinel errors).
func (r Result[OUT]) Error() error {
	if r.isSentinel {
		return nil
	}
	return r.err
}

// Sentinel returns the sentinel's context error if this is a sentinel Result.
func (r Result[OUT]) Sentinel() error {
	if !r.isSentinel {
		return nil
	}
	return r.err
}

// Unwrap returns the value and error together.
func (r Result[OUT]) Unwrap() (OUT, error) {
	return r.value, r.err
}
