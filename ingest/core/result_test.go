package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStates(t *testing.T) {
	tests := []struct {
		name       string
		result     Result[int]
		isValue    bool
		isError    bool
		isSentinel bool
	}{
		{name: "value", result: Ok(42), isValue: true},
		{name: "error", result: Err[int](errors.New("boom")), isError: true},
		{name: "sentinel", result: EndOfStream[int](), isSentinel: true},
		{name: "sentinel with nil context", result: Sentinel[int](nil), isSentinel: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isValue, tt.result.IsValue())
			assert.Equal(t, tt.isError, tt.result.IsError())
			assert.Equal(t, tt.isSentinel, tt.result.IsSentinel())
		})
	}
}

func TestResultAccessors(t *testing.T) {
	boom := errors.New("boom")

	assert.Equal(t, 42, Ok(42).Value())
	assert.NoError(t, Ok(42).Error())

	assert.Equal(t, boom, Err[int](boom).Error())
	assert.Zero(t, Err[int](boom).Value())

	end := EndOfStream[int]()
	assert.NoError(t, end.Error(), "sentinel context must not surface as a processing error")
	assert.Equal(t, ErrEndOfStream, end.Sentinel())
	assert.NoError(t, Ok(1).Sentinel())
}

func TestCollectPreservesOrder(t *testing.T) {
	stream := FromResults([]Result[string]{
		Ok("a"),
		Err[string](errors.New("bad")),
		Ok("b"),
		EndOfStream[string](),
	})

	results := Collect(context.Background(), stream)
	require.Len(t, results, 4)
	assert.Equal(t, "a", results[0].Value())
	assert.True(t, results[1].IsError())
	assert.Equal(t, "b", results[2].Value())
	assert.True(t, results[3].IsSentinel())
}

func TestTransmitterApply(t *testing.T) {
	double := Transmit(func(ctx context.Context, in <-chan Result[int]) <-chan Result[int] {
		out := make(chan Result[int])
		go func() {
			defer close(out)
			for res := range in {
				if res.IsValue() {
					res = Ok(res.Value() * 2)
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

	results := Collect(context.Background(), double.Apply(context.Background(), FromSlice([]int{1, 2, 3})))
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Value())
	assert.Equal(t, 4, results[1].Value())
	assert.Equal(t, 6, results[2].Value())
}

func TestAllStopsWhenYieldReturnsFalse(t *testing.T) {
	stream := FromSlice([]int{1, 2, 3, 4})

	var seen []int
	for res := range All(context.Background(), stream) {
		seen = append(seen, res.Value())
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, seen)
}
