// Package ingest is the user-facing API of the riskstream client: a
// session controller that opens the chunked NDJSON feed, runs the
// decode -> frame -> parse -> classify pipeline over it, and dispatches
// typed events to caller callbacks.
//
// One Controller owns at most one active Session. Starting a new session
// cancels and waits out any prior one, so two sessions can never
// interleave callbacks into the same caller-owned aggregation.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lguimbarda/riskstream/ingest/decode"
	"github.com/lguimbarda/riskstream/ingest/frame"
	"github.com/lguimbarda/riskstream/ingest/ingesterrors"
	"github.com/lguimbarda/riskstream/ingest/observe"
	"github.com/lguimbarda/riskstream/ingest/record"
	"github.com/lguimbarda/riskstream/ingest/source"
)

// Controller runs ingestion sessions against the streaming endpoint.
// Configure the exported fields before the first Start; the zero value
// uses http.DefaultClient, discards logs, and records no metrics.
type Controller struct {
	// Client is the HTTP client used for feed requests. Nil means
	// http.DefaultClient.
	Client *http.Client

	// Logger receives structured session logs. Nil discards them.
	Logger *slog.Logger

	// Metrics receives session instrumentation. Nil means noop.
	Metrics *observe.Metrics

	mu     sync.Mutex
	active *Session
}

// NewController returns a Controller with default collaborators.
func NewController() *Controller {
	return &Controller{}
}

// Start begins a new ingestion session and returns it. Any prior active
// session is cancelled first and its dispatch loop is waited out, so the
// prior session reaches a terminal state strictly before the new
// session's first callback fires. The returned session terminates when a
// summary record arrives, the feed is exhausted, the session (or ctx) is
// cancelled, or the transport fails.
func (c *Controller) Start(ctx context.Context, opts Options, handlers Handlers) *Session {
	c.mu.Lock()
	prior := c.active
	c.mu.Unlock()

	if prior != nil {
		prior.Cancel()
		<-prior.Done()
	}

	sctx, cancel := context.WithCancel(ctx)
	s := newSession(cancel)

	c.mu.Lock()
	c.active = s
	c.mu.Unlock()

	go c.run(sctx, s, opts, handlers)
	return s
}

// Cancel cancels the active session, if any. Idempotent; a no-op when no
// session is active or the active session already terminated.
func (c *Controller) Cancel() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
}

// Active returns the session currently owned by the controller, or nil.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// run is the session's dispatch loop. It is the sole consumer of the
// pipeline and the only goroutine that invokes handlers, which keeps the
// whole session sequential: the next chunk is not requested until the
// current callback returns.
func (c *Controller) run(ctx context.Context, s *Session, opts Options, handlers Handlers) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	metrics := c.Metrics
	if metrics == nil {
		metrics = observe.Noop()
	}
	inv := observe.NewInvoker(ctx)

	defer func() {
		s.finish(StateCancelled) // loop exits without a terminal state only on cancellation
		c.mu.Lock()
		if c.active == s {
			c.active = nil
		}
		c.mu.Unlock()

		state := s.State()
		metrics.SessionEnded(context.WithoutCancel(ctx), state.String(), time.Since(s.started))
		logger.Info("session finished",
			slog.String("session", s.id.String()),
			slog.String("state", state.String()),
			slog.Int("processed", s.Processed()))
		close(s.done)
	}()

	logger.Info("session starting",
		slog.String("session", s.id.String()),
		slog.String("endpoint", opts.Endpoint))

	bytes := source.Bytes(c.Client, opts.Endpoint, opts.query(), opts.ChunkSize)
	text := decode.UTF8().Apply(ctx, bytes)
	lines := observe.Tap(inv.Line).Apply(ctx, frame.Lines().Apply(ctx, text))
	records := ingesterrors.OnError[record.Record](func(err error) {
		if ingesterrors.IsParse(err) {
			metrics.ParseErrorObserved(ctx)
		}
		inv.Error(err)
	}).Apply(ctx, record.Decode().Apply(ctx, lines))

	for res := range records.Emit(ctx) {
		if ctx.Err() != nil {
			// Cancellation takes effect before anything further is
			// dispatched; a result already in flight is discarded.
			break
		}

		if res.IsSentinel() {
			// Normal exhaustion; the framer has already flushed any
			// residue ahead of this signal.
			s.finish(StateCompleted)
			break
		}

		if res.IsError() {
			err := res.Error()
			if ingesterrors.IsTransport(err) {
				// An immediate failure takes Starting straight to
				// Failed without passing through Streaming.
				logger.Error("session transport failure",
					slog.String("session", s.id.String()),
					slog.Any("err", err))
				handlers.error(err)
				s.finish(StateFailed)
				s.Cancel()
				break
			}
			s.markStreaming()
			handlers.error(err)
			continue
		}

		s.markStreaming()
		rec := res.Value()
		inv.Record(rec)
		metrics.RecordDispatched(ctx, rec.Kind().String())

		switch rec := rec.(type) {
		case record.Metadata:
			s.reviseTotal(rec.TotalPatients)
			handlers.metadata(rec)

		case record.Batch:
			processed := s.advance(rec.ProcessedCount, len(rec.Patients))
			total := s.reviseTotal(rec.TotalPatients)
			metrics.BatchDispatched(ctx, len(rec.Patients))
			handlers.batch(rec.Patients, processed, total)

		case record.Summary:
			handlers.summary(rec)
			s.finish(StateCompleted)
			// Abort the connection rather than draining bytes that
			// arrive after the terminal record.
			s.Cancel()

		case record.FeedError:
			handlers.error(&ingesterrors.FeedError{Message: rec.Message})

		case record.Unrecognized:
			logger.Debug("unrecognized feed record",
				slog.String("session", s.id.String()),
				slog.String("type", rec.Type),
				slog.String("raw", rec.Raw))
			handlers.error(&ingesterrors.ProtocolError{Type: rec.Type})
		}

		if s.State().Terminal() {
			break
		}
	}
}
