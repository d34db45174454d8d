package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/lguimbarda/riskstream/ingest"
	"github.com/lguimbarda/riskstream/ingest/record"
)

// Recorder adapts a Store into session Handlers: batches and summaries
// are persisted as they stream, then forwarded to the wrapped handlers.
// A storage failure is reported through the wrapped OnError but does not
// terminate the session; the feed keeps flowing.
type Recorder struct {
	store *Store
	runID string
	ctx   context.Context
}

// NewRecorder creates a Recorder writing under a fresh run identifier.
// The context bounds the store writes (the session callbacks themselves
// carry no context).
func NewRecorder(ctx context.Context, s *Store) *Recorder {
	return &Recorder{store: s, runID: uuid.NewString(), ctx: ctx}
}

// RunID returns the identifier the recorder writes under.
func (r *Recorder) RunID() string { return r.runID }

// Handlers returns Handlers that persist each event before forwarding it
// to next.
func (r *Recorder) Handlers(next ingest.Handlers) ingest.Handlers {
	return ingest.Handlers{
		OnMetadata: next.OnMetadata,
		OnBatch: func(items []record.Patient, processed, total int) {
			if err := r.store.SaveBatch(r.ctx, r.runID, items); err != nil && next.OnError != nil {
				next.OnError(err)
			}
			if next.OnBatch != nil {
				next.OnBatch(items, processed, total)
			}
		},
		OnSummary: func(summary record.Summary) {
			if err := r.store.SaveSummary(r.ctx, r.runID, summary); err != nil && next.OnError != nil {
				next.OnError(err)
			}
			if next.OnSummary != nil {
				next.OnSummary(summary)
			}
		},
		OnError: next.OnError,
	}
}
