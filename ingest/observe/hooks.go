// Package observe provides an observation side-channel for ingest
// sessions: typed context hooks fired by the controller's dispatch loop,
// and an OpenTelemetry instrument bundle for session metrics.
package observe

import (
	"context"

	"github.com/lguimbarda/riskstream/ingest/record"
)

// Hooks holds observation callbacks for a session. All fields are
// optional - nil means no observation for that event. Hooks are invoked
// synchronously from the session's dispatch loop, so they should be fast
// to avoid throttling the feed.
type Hooks struct {
	OnRecord func(record.Record) // every classified record, before dispatch
	OnLine   func(string)        // every complete framed line
	OnError  func(error)         // every non-terminal error
}

// hooksKey is unexported to prevent collisions with user context keys.
type hooksKey struct{}

// hooksContainer holds multiple hook sets for FIFO invocation.
type hooksContainer struct {
	hookSets []*Hooks
}

// WithHooks attaches hooks to the context. Multiple calls compose in
// FIFO order - hooks from earlier calls are invoked before hooks from
// later calls.
func WithHooks(ctx context.Context, hooks Hooks) context.Context {
	existing, _ := ctx.Value(hooksKey{}).(*hooksContainer)
	if existing == nil {
		return context.WithValue(ctx, hooksKey{}, &hooksContainer{
			hookSets: []*Hooks{&hooks},
		})
	}

	sets := make([]*Hooks, len(existing.hookSets)+1)
	copy(sets, existing.hookSets)
	sets[len(existing.hookSets)] = &hooks
	return context.WithValue(ctx, hooksKey{}, &hooksContainer{hookSets: sets})
}

// WithRecordHook attaches a record observation hook to the context.
func WithRecordHook(ctx context.Context, callback func(record.Record)) context.Context {
	return WithHooks(ctx, Hooks{OnRecord: callback})
}

// WithErrorHook attaches an error observation hook to the context.
func WithErrorHook(ctx context.Context, callback func(error)) context.Context {
	return WithHooks(ctx, Hooks{OnError: callback})
}

// Invoker fires registered hooks. The zero Invoker is a no-op; obtain a
// real one with NewInvoker at the start of a session.
type Invoker struct {
	container *hooksContainer
}

// NewInvoker captures the hooks registered on ctx for repeated
// invocation without further context lookups.
func NewInvoker(ctx context.Context) Invoker {
	container, _ := ctx.Value(hooksKey{}).(*hooksContainer)
	return Invoker{container: container}
}

// Record fires all OnRecord hooks in FIFO order.
func (inv Invoker) Record(rec record.Record) {
	if inv.container == nil {
		return
	}
	for _, h := range inv.container.hookSets {
		if h.OnRecord != nil {
			h.OnRecord(rec)
		}
	}
}

// Line fires all OnLine hooks in FIFO order.
func (inv Invoker) Line(line string) {
	if inv.container == nil {
		return
	}
	for _, h := range inv.container.hookSets {
		if h.OnLine != nil {
			h.OnLine(line)
		}
	}
}

// Error fires all OnError hooks in FIFO order.
func (inv Invoker) Error(err error) {
	if inv.container == nil {
		return
	}
	for _, h := range inv.container.hookSets {
		if h.OnError != nil {
			h.OnError(err)
		}
	}
}
