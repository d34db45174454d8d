package ingest

import "github.com/lguimbarda/riskstream/ingest/record"

// Handlers receives the typed events of one session. All fields are
// optional - a nil callback drops that event. Callbacks are invoked
// sequentially from the session's dispatch loop; a slow callback
// throttles the feed rather than growing a buffer.
type Handlers struct {
	// OnMetadata fires for feed-level metadata records.
	OnMetadata func(meta record.Metadata)

	// OnBatch fires for each batch with the session's monotonic
	// progress counters. total is zero until the feed announces one.
	OnBatch func(items []record.Patient, processed, total int)

	// OnSummary fires exactly once, for the terminal summary record.
	OnSummary func(summary record.Summary)

	// OnError fires for every non-terminal problem (unparseable lines,
	// unrecognized records, feed-reported errors) and exactly once for
	// a terminal transport failure. It never fires for cancellation.
	OnError func(err error)
}

func (h Handlers) metadata(meta record.Metadata) {
	if h.OnMetadata != nil {
		h.OnMetadata(meta)
	}
}

func (h Handlers) batch(items []record.Patient, processed, total int) {
	if h.OnBatch != nil {
		h.OnBatch(items, processed, total)
	}
}

func (h Handlers) summary(summary record.Summary) {
	if h.OnSummary != nil {
		h.OnSummary(summary)
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}
