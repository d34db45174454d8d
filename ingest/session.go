package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state retires the session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Session is one ingestion run. It is created by Controller.Start,
// mutated by the session's dispatch loop, and retired on reaching a
// terminal state. Cancellation is addressed at the session itself, so a
// stray Cancel can never affect a later run.
type Session struct {
	id      uuid.UUID
	started time.Time

	cancel     context.CancelFunc
	cancelOnce sync.Once
	done       chan struct{}

	mu         sync.Mutex
	state      State
	processed  int
	total      int
	totalKnown bool
}

func newSession(cancel context.CancelFunc) *Session {
	return &Session{
		id:      uuid.New(),
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   StateStarting,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Processed returns the number of records processed so far. It is
// monotonically non-decreasing while the session streams.
func (s *Session) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// TotalExpected returns the feed-supplied total and whether the feed has
// announced one yet. The total is only ever revised upward.
func (s *Session) TotalExpected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, s.totalKnown
}

// Cancel requests cooperative cancellation of the session. It is
// idempotent and a no-op once the session has reached a terminal state.
func (s *Session) Cancel() {
	s.cancelOnce.Do(s.cancel)
}

// Done returns a channel that is closed when the session reaches a
// terminal state and its dispatch loop has returned. No callback fires
// after Done is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session terminates and returns its final state.
func (s *Session) Wait() State {
	<-s.done
	return s.State()
}

// markStreaming transitions Starting -> Streaming on the first result.
func (s *Session) markStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStarting {
		s.state = StateStreaming
	}
}

// advance raises processedCount to the batch's own counter, falling back
// to the item count when the feed omitted one. The count never decreases.
func (s *Session) advance(processedCount, items int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := processedCount
	if candidate == 0 {
		candidate = s.processed + items
	}
	if candidate > s.processed {
		s.processed = candidate
	}
	return s.processed
}

// reviseTotal raises the expected total. A feed may revise its estimate
// upward but is never known to shrink, so smaller values are ignored.
func (s *Session) reviseTotal(total int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total > 0 && (!s.totalKnown || total > s.total) {
		s.total = total
		s.totalKnown = true
	}
	return s.total
}

// finish records the terminal state. The first terminal state wins.
func (s *Session) finish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		s.state = state
	}
}
