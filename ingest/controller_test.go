package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguimbarda/riskstream/ingest/ingesterrors"
	"github.com/lguimbarda/riskstream/ingest/observe"
	"github.com/lguimbarda/riskstream/ingest/record"
)

// feedServer serves a scripted NDJSON feed, flushing after every write.
// When hold is non-nil the handler keeps the response open after the
// script until the channel closes or the client disconnects, which lets
// tests observe a session in mid-stream.
func feedServer(t *testing.T, script []string, hold chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, line := range script {
			fmt.Fprint(w, line)
			flusher.Flush()
		}
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// eventLog records dispatched callbacks in order for assertion.
type eventLog struct {
	mu      sync.Mutex
	events  []string
	signals chan string
}

func newEventLog() *eventLog {
	return &eventLog{signals: make(chan string, 64)}
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	l.signals <- event
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// next waits for the next recorded event.
func (l *eventLog) next(t *testing.T) string {
	t.Helper()
	select {
	case e := <-l.signals:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a callback")
		return ""
	}
}

func (l *eventLog) handlers() Handlers {
	return Handlers{
		OnMetadata: func(meta record.Metadata) {
			l.add(fmt.Sprintf("metadata total=%d", meta.TotalPatients))
		},
		OnBatch: func(items []record.Patient, processed, total int) {
			l.add(fmt.Sprintf("batch items=%d processed=%d total=%d", len(items), processed, total))
		},
		OnSummary: func(summary record.Summary) {
			l.add(fmt.Sprintf("summary processed=%d dist=%d/%d/%d",
				summary.TotalProcessed,
				summary.RiskDistribution.Low,
				summary.RiskDistribution.Medium,
				summary.RiskDistribution.High))
		},
		OnError: func(err error) {
			switch {
			case ingesterrors.IsTransport(err):
				l.add("error transport")
			case ingesterrors.IsParse(err):
				l.add("error parse")
			case ingesterrors.IsProtocol(err):
				l.add("error protocol")
			default:
				l.add("error feed")
			}
		},
	}
}

func TestSessionSingleBatchNoTerminal(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := feedServer(t, []string{
		`{"type":"batch","patients":[{"patient_id":1}],"processed_count":1,"total_patients":2}` + "\n",
	}, hold)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	assert.Equal(t, "batch items=1 processed=1 total=2", log.next(t))
	assert.Equal(t, StateStreaming, s.State(), "no terminal callback yet")
	assert.Equal(t, 1, s.Processed())
	total, known := s.TotalExpected()
	assert.True(t, known)
	assert.Equal(t, 2, total)

	s.Cancel()
	assert.Equal(t, StateCancelled, s.Wait())
	assert.Equal(t, []string{"batch items=1 processed=1 total=2"}, log.all(),
		"no callback may follow cancellation")
}

func TestSessionSummaryCompletesAndIgnoresTrailingBytes(t *testing.T) {
	srv := feedServer(t, []string{
		`{"type":"summary","total_processed":2,"risk_distribution":{"low":1,"medium":1,"high":0}}` + "\n",
		`{"type":"batch","patients":[{"patient_id":9}],"processed_count":3,"total_patients":3}` + "\n",
	}, nil)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	assert.Equal(t, StateCompleted, s.Wait())
	assert.Equal(t, []string{"summary processed=2 dist=1/1/0"}, log.all(),
		"bytes after the summary are ignored")
}

func TestSessionBadLineRecovery(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := feedServer(t, []string{
		"{bad json}\n",
		`{"type":"metadata","total_patients":5}` + "\n",
	}, hold)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	assert.Equal(t, "error parse", log.next(t))
	assert.Equal(t, "metadata total=5", log.next(t))
	assert.Equal(t, StateStreaming, s.State(),
		"a malformed line must not change the session state")

	s.Cancel()
	s.Wait()
}

func TestSessionFinalResidueFlush(t *testing.T) {
	// The feed ends without a trailing newline; the fragment must be
	// parsed and dispatched exactly once.
	srv := feedServer(t, []string{
		`{"type":"batch","patients":[{"patient_id":1},{"patient_id":2}],"processed_count":2,"total_patients":2}`,
	}, nil)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	assert.Equal(t, StateCompleted, s.Wait(), "exhaustion without a summary still completes")
	assert.Equal(t, []string{"batch items=2 processed=2 total=2"}, log.all())
}

func TestSessionChunkBoundaryInvariance(t *testing.T) {
	payload := `{"type":"metadata","total_patients":4}` + "\n" +
		`{"type":"batch","patients":[{"patient_id":1},{"patient_id":2}],"processed_count":2,"total_patients":4}` + "\n" +
		`{"type":"batch","patients":[{"patient_id":3},{"patient_id":4}],"processed_count":4,"total_patients":4}` + "\n" +
		`{"type":"summary","total_processed":4,"risk_distribution":{"low":2,"medium":1,"high":1}}` + "\n"

	want := []string{
		"metadata total=4",
		"batch items=2 processed=2 total=4",
		"batch items=2 processed=4 total=4",
		"summary processed=4 dist=2/1/1",
	}

	// One write per byte versus one write for the whole payload must
	// dispatch the identical ordered sequence.
	scripts := map[string][]string{
		"single chunk": {payload},
		"per byte":     splitEach(payload, 1),
		"tiny chunks":  splitEach(payload, 7),
	}

	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			srv := feedServer(t, script, nil)
			log := newEventLog()
			c := NewController()
			s := c.Start(context.Background(), Options{Endpoint: srv.URL, ChunkSize: 3}, log.handlers())
			require.Equal(t, StateCompleted, s.Wait())
			assert.Equal(t, want, log.all())
		})
	}
}

func splitEach(s string, n int) []string {
	var parts []string
	for i := 0; i < len(s); i += n {
		end := min(i+n, len(s))
		parts = append(parts, s[i:end])
	}
	return parts
}

func TestSingleActiveSession(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	first := feedServer(t, []string{
		`{"type":"batch","patients":[{"patient_id":1}],"processed_count":1,"total_patients":9}` + "\n",
	}, hold)
	second := feedServer(t, []string{
		`{"type":"summary","total_processed":0,"risk_distribution":{"low":0,"medium":0,"high":0}}` + "\n",
	}, nil)

	firstLog := newEventLog()
	c := NewController()
	s1 := c.Start(context.Background(), Options{Endpoint: first.URL}, firstLog.handlers())
	firstLog.next(t) // first session is mid-stream

	secondLog := newEventLog()
	s2 := c.Start(context.Background(), Options{Endpoint: second.URL}, secondLog.handlers())

	// Start only returns once the prior session is fully retired.
	assert.Equal(t, StateCancelled, s1.State(),
		"prior session reaches Cancelled before the new session's first callback")
	assert.Equal(t, StateCompleted, s2.Wait())
	assert.Equal(t, []string{"batch items=1 processed=1 total=9"}, firstLog.all(),
		"no further callbacks from the superseded session")
}

func TestCancelIdempotence(t *testing.T) {
	srv := feedServer(t, []string{
		`{"type":"summary","total_processed":0,"risk_distribution":{"low":0,"medium":0,"high":0}}` + "\n",
	}, nil)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())
	require.Equal(t, StateCompleted, s.Wait())

	// Cancelling a settled session, repeatedly and via either surface,
	// is a no-op.
	s.Cancel()
	s.Cancel()
	c.Cancel()
	assert.Equal(t, StateCompleted, s.State())

	// A controller with no active session tolerates Cancel too.
	assert.Nil(t, c.Active())
	c.Cancel()
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	assert.Equal(t, StateFailed, s.Wait())
	assert.Equal(t, []string{"error transport"}, log.all(), "exactly one terminal notification")

	// The controller itself stays reusable.
	good := feedServer(t, []string{
		`{"type":"summary","total_processed":0,"risk_distribution":{"low":0,"medium":0,"high":0}}` + "\n",
	}, nil)
	s2 := c.Start(context.Background(), Options{Endpoint: good.URL}, newEventLog().handlers())
	assert.Equal(t, StateCompleted, s2.Wait())
}

func TestFeedErrorRecordIsNonTerminal(t *testing.T) {
	srv := feedServer(t, []string{
		`{"type":"error","error":"scoring backend degraded"}` + "\n",
		`{"type":"batch","patients":[{"patient_id":1}],"processed_count":1,"total_patients":1}` + "\n",
		`{"type":"summary","total_processed":1,"risk_distribution":{"low":1,"medium":0,"high":0}}` + "\n",
	}, nil)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	require.Equal(t, StateCompleted, s.Wait())
	assert.Equal(t, []string{
		"error feed",
		"batch items=1 processed=1 total=1",
		"summary processed=1 dist=1/0/0",
	}, log.all())
}

func TestUnrecognizedRecordExcludedFromProgress(t *testing.T) {
	srv := feedServer(t, []string{
		`{"type":"heartbeat","seq":1}` + "\n",
		`{"no_type_at_all":true}` + "\n",
		`{"type":"summary","total_processed":0,"risk_distribution":{"low":0,"medium":0,"high":0}}` + "\n",
	}, nil)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	require.Equal(t, StateCompleted, s.Wait())
	assert.Zero(t, s.Processed(), "unrecognized records never advance progress")
	assert.Equal(t, []string{
		"error protocol",
		"error protocol",
		"summary processed=0 dist=0/0/0",
	}, log.all())
}

func TestProcessedCountMonotonic(t *testing.T) {
	// A feed that repeats a stale counter must not move progress
	// backwards.
	srv := feedServer(t, []string{
		`{"type":"batch","patients":[{"patient_id":1}],"processed_count":5,"total_patients":9}` + "\n",
		`{"type":"batch","patients":[{"patient_id":2}],"processed_count":3,"total_patients":9}` + "\n",
		`{"type":"summary","total_processed":6,"risk_distribution":{"low":6,"medium":0,"high":0}}` + "\n",
	}, nil)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	require.Equal(t, StateCompleted, s.Wait())
	assert.Equal(t, []string{
		"batch items=1 processed=5 total=9",
		"batch items=1 processed=5 total=9",
		"summary processed=6 dist=6/0/0",
	}, log.all())
}

func TestBatchWithoutCounterFallsBackToItemCount(t *testing.T) {
	srv := feedServer(t, []string{
		`{"type":"batch","patients":[{"patient_id":1},{"patient_id":2}]}` + "\n",
		`{"type":"batch","patients":[{"patient_id":3}]}` + "\n",
	}, nil)

	log := newEventLog()
	c := NewController()
	s := c.Start(context.Background(), Options{Endpoint: srv.URL}, log.handlers())

	require.Equal(t, StateCompleted, s.Wait())
	assert.Equal(t, []string{
		"batch items=2 processed=2 total=0",
		"batch items=1 processed=3 total=0",
	}, log.all())
}

func TestRecordHookObservesDispatch(t *testing.T) {
	srv := feedServer(t, []string{
		`{"type":"metadata","total_patients":1}` + "\n",
		`{"type":"summary","total_processed":0,"risk_distribution":{"low":0,"medium":0,"high":0}}` + "\n",
	}, nil)

	var kinds []string
	var mu sync.Mutex
	ctx := observe.WithRecordHook(context.Background(), func(rec record.Record) {
		mu.Lock()
		kinds = append(kinds, rec.Kind().String())
		mu.Unlock()
	})

	c := NewController()
	s := c.Start(ctx, Options{Endpoint: srv.URL}, Handlers{})
	require.Equal(t, StateCompleted, s.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"metadata", "summary"}, kinds)
}

func TestParentContextCancellation(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := feedServer(t, []string{
		`{"type":"metadata","total_patients":1}` + "\n",
	}, hold)

	ctx, cancel := context.WithCancel(context.Background())
	log := newEventLog()
	c := NewController()
	s := c.Start(ctx, Options{Endpoint: srv.URL}, log.handlers())
	log.next(t)

	cancel()
	assert.Equal(t, StateCancelled, s.Wait(),
		"an external deadline is expressed by cancelling from outside")
	assert.Equal(t, []string{"metadata total=1"}, log.all(),
		"cancellation does not invoke OnError")
}
