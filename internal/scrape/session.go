package scrape

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/bookmark-cli/internal/dedup"
)

// State is the loop's lifecycle state.
type State int32

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Reason records why a session ended.
type Reason string

const (
	ReasonFeedEnd   Reason = "feed_end"
	ReasonMaxCycles Reason = "max_cycles"
	ReasonStopped   Reason = "stopped"
	ReasonCanceled  Reason = "canceled"
	ReasonError     Reason = "error"
)

// Stats is a point-in-time copy of a session's counters.
type Stats struct {
	ID           string
	Cycles       int
	Stalls       int
	Found        int
	Synced       int
	Skipped      int
	SyncFailures int
	Reason       Reason
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Done reports whether the session has ended.
func (s Stats) Done() bool { return s.Reason != "" }

// Session is one scraping run. It owns the dedup cache; nothing about a
// session is process-global.
type Session struct {
	ID   string
	Seen *dedup.Cache

	mu    sync.Mutex
	stats Stats
}

func newSession(now time.Time) *Session {
	id := uuid.New().String()
	return &Session{
		ID:    id,
		Seen:  dedup.NewCache(),
		stats: Stats{ID: id, StartedAt: now},
	}
}

// Stats returns a copy of the counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) update(fn func(st *Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

func (s *Session) finish(now time.Time, reason Reason, err error) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Reason = reason
	s.stats.Err = err
	s.stats.FinishedAt = now
	return s.stats
}
