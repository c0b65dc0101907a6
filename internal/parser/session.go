package parser

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// maxReportedFailures bounds the malformed records logged per session.
	maxReportedFailures = 10
	progressInterval    = 5 * time.Second
)

// Session holds the counters shared by every worker and write task of one
// load. Sessions are independent; several may run concurrently.
type Session struct {
	ID          string
	LinesRead   atomic.Int64
	LinesFailed atomic.Int64

	start  time.Time
	logger *slog.Logger

	mu           sync.Mutex
	lastProgress time.Time
	interval     time.Duration
}

// NewSession starts a session logging through logger, tagged with a new
// session id.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	now := time.Now()
	return &Session{
		ID:           id,
		start:        now,
		logger:       logger.With("session_id", id),
		lastProgress: now,
		interval:     progressInterval,
	}
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration { return time.Since(s.start) }

// recordFailure counts one malformed record and logs the first few.
func (s *Session) recordFailure(path, diagnosis string) {
	if n := s.LinesFailed.Add(1); n <= maxReportedFailures {
		s.logger.Warn("malformed record", "path", path, "failure", n, "diagnosis", diagnosis)
		if n == maxReportedFailures {
			s.logger.Warn("further malformed records are not logged", "path", path)
		}
	}
}

// reportProgress logs the lines read at most once per interval.
func (s *Session) reportProgress() {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.lastProgress) < s.interval {
		s.mu.Unlock()
		return
	}
	s.lastProgress = now
	s.mu.Unlock()

	lines := s.LinesRead.Load()
	s.logger.Info("read lines", "lines", lines, "lines_per_sec", rate(lines, s.Elapsed()))
}

// logSummary logs the final counters of the session.
func (s *Session) logSummary() {
	elapsed := s.Elapsed()
	lines := s.LinesRead.Load()
	s.logger.Info("parse finished",
		"lines_read", lines,
		"lines_failed", s.LinesFailed.Load(),
		"elapsed_sec", elapsed.Seconds(),
		"lines_per_sec", rate(lines, elapsed))
}

func rate(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
