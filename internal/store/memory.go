package store

import (
	"context"
	"errors"
	"sync"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

// MemoryStore is a concurrency-safe in-memory record store. It backs
// dry runs and tests; nothing survives the process.
type MemoryStore struct {
	mu sync.RWMutex

	records []forecast.Record

	// failAppend, when set, makes Append fail after writing this many records.
	failAppend *int
}

// NewMemoryStore creates a new MemoryStore seeded with records.
func NewMemoryStore(records ...forecast.Record) *MemoryStore {
	return &MemoryStore{
		records: append([]forecast.Record(nil), records...),
	}
}

// FailAppendAfter makes subsequent appends fail after n records have been
// stored, emulating a sink that breaks mid-batch.
func (s *MemoryStore) FailAppendAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = &n
}

// ReadState implements forecast.StateReader.
func (s *MemoryStore) ReadState(ctx context.Context) (forecast.State, error) {
	if err := ctx.Err(); err != nil {
		return forecast.State{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := forecast.State{Keys: forecast.KeySet{}, Count: len(s.records)}
	for _, r := range s.records {
		st.Keys.Add(r.Slot.Key())
		if st.Last == nil || r.Slot.After(*st.Last) {
			last := r.Slot
			st.Last = &last
		}
	}
	return st, nil
}

// Append implements forecast.Appender. It performs no duplicate checking.
func (s *MemoryStore) Append(ctx context.Context, records []forecast.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &forecast.PersistenceError{Target: "memory", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppend != nil {
		n := min(*s.failAppend, len(records))
		s.records = append(s.records, records[:n]...)
		return 0, &forecast.PersistenceError{Target: "memory", Err: errors.New("sink failed mid-batch")}
	}

	s.records = append(s.records, records...)
	return len(records), nil
}

// Records returns a copy of all records in append order.
func (s *MemoryStore) Records() []forecast.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]forecast.Record(nil), s.records...)
}
