package history

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

var (
	// ErrNotFound is returned when no run has been recorded yet.
	ErrNotFound = errors.New("no runs recorded")
)

// Store is a concurrency-safe, bounded history of run reports.
type Store struct {
	mu sync.RWMutex

	reports []forecast.RunReport

	// retention configuration
	maxHistory int           // max number of reports kept
	maxAge     time.Duration // optional max age for reports

	now func() time.Time
}

// New creates a new Store with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func New(maxHistory int, maxAge time.Duration) *Store {
	return &Store{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Add appends a report and enforces retention.
func (s *Store) Add(report forecast.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, report)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.reports) > s.maxHistory {
		over := len(s.reports) - s.maxHistory
		s.reports = append([]forecast.RunReport(nil), s.reports[over:]...)
	}

	// Enforce retention by age. The newest report is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.reports)-1; i++ {
			if !s.reports[i].Timestamp().Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.reports = s.reports[i:]
		}
	}
}

// Latest returns the most recent report.
func (s *Store) Latest() (forecast.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.reports) == 0 {
		return forecast.RunReport{}, ErrNotFound
	}
	return s.reports[len(s.reports)-1], nil
}

// List returns reports newest first, at most limit of them (limit <= 0 means all).
func (s *Store) List(limit int) []forecast.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.reports)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]forecast.RunReport, 0, n)
	for i := len(s.reports) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.reports[i])
	}
	return out
}

// Len returns the number of retained reports.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
