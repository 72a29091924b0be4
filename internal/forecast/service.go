package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Service.
type Options struct {
	Location Location
	// TimeZone is the reference timezone all slots live in.
	TimeZone *time.Location
	Planner  Planner
}

// Service orchestrates one reconciliation run: read state, plan, fetch,
// normalize and append. Runs are not coordinated against each other;
// callers must serialize invocations against the same store.
type Service struct {
	state  StateReader
	sink   Appender
	source Source
	clock  Clock
	opts   Options
	log    *zap.Logger
}

// NewService creates a new Service.
func NewService(state StateReader, sink Appender, source Source, clock Clock, opts Options, log *zap.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		state:  state,
		sink:   sink,
		source: source,
		clock:  clock,
		opts:   opts,
		log:    log,
	}
}

// Location returns the tracked location.
func (s *Service) Location() Location {
	return s.opts.Location
}

// TimeZone returns the reference timezone.
func (s *Service) TimeZone() *time.Location {
	return s.opts.TimeZone
}

// Now returns the current slot according to the service clock.
func (s *Service) Now() Slot {
	return NewSlot(s.clock.Now(), s.opts.TimeZone)
}

// Preview reads the store and plans against now without fetching or writing.
func (s *Service) Preview(ctx context.Context, now Slot) (Plan, error) {
	st, err := s.state.ReadState(ctx)
	if err != nil {
		return Plan{}, err
	}
	if st.Skipped > 0 {
		s.log.Warn("corrupt rows skipped while reading state", zap.Int("skipped", st.Skipped))
	}

	targets := s.opts.Planner.Plan(now, st.Last)
	return Plan{
		Now:     now,
		Last:    st.Last,
		Targets: targets,
		Missing: Diff(targets, st.Keys),
		Stored:  st.Count,
	}, nil
}

// Run executes one complete batch. A run with nothing missing succeeds
// with zero records written. Fetch and persistence failures abort the run.
func (s *Service) Run(ctx context.Context) (RunReport, error) {
	began := time.Now()
	started := s.clock.Now()
	report := RunReport{
		ID:        uuid.NewString(),
		Location:  s.opts.Location.Name,
		Source:    s.source.Name(),
		StartedAt: started,
	}
	log := s.log.With(zap.String("run_id", report.ID))

	finish := func(err error) (RunReport, error) {
		report.Duration = time.Since(began)
		if err != nil {
			report.Err = err.Error()
		}
		return report, err
	}

	plan, err := s.Preview(ctx, NewSlot(started, s.opts.TimeZone))
	if err != nil {
		log.Error("reading state failed", zap.Error(err))
		return finish(fmt.Errorf("read state: %w", err))
	}
	report.Plan = plan

	log.Info("planned run",
		zap.Stringer("now", plan.Now),
		zap.Stringers("targets", plan.Targets),
		zap.Stringers("missing", plan.Missing),
		zap.Int("stored", plan.Stored),
	)

	start, end, ok := Window(plan.Missing)
	if !ok {
		log.Info("nothing to fetch", zap.Int("written", 0))
		return finish(nil)
	}

	entries, err := s.source.Fetch(ctx, FetchRequest{
		Latitude:  s.opts.Location.Latitude,
		Longitude: s.opts.Location.Longitude,
		Start:     start,
		End:       end,
		Timezone:  s.opts.TimeZone.String(),
	})
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Source: s.source.Name(), Err: err}
		}
		log.Error("fetch failed", zap.Error(err))
		return finish(err)
	}

	records, results, unparseable := s.reconcile(plan.Missing, entries, started)
	report.Results = results
	report.Unparseable = unparseable

	for _, res := range results {
		switch res.Status {
		case SlotStatusMissing:
			log.Warn("slot absent from response, deferred to next run", zap.Stringer("slot", res.Slot))
		case SlotStatusMalformed:
			log.Warn("slot only has a non-aligned timestamp, deferred to next run",
				zap.Stringer("slot", res.Slot), zap.String("raw", res.Raw))
		case SlotStatusDefaulted:
			log.Warn("fields defaulted", zap.Stringer("slot", res.Slot), zap.Strings("fields", res.Defaulted))
		}
	}
	for _, raw := range unparseable {
		log.Warn("unparseable timestamp in response", zap.String("raw", raw))
	}

	if len(records) == 0 {
		log.Info("no records to write", zap.Int("written", 0))
		return finish(nil)
	}

	n, err := s.sink.Append(ctx, records)
	report.Written = n
	if err != nil {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			err = &PersistenceError{Target: "store", Err: err}
		}
		log.Error("append failed", zap.Error(err))
		return finish(err)
	}

	log.Info("run completed", zap.Int("written", n), zap.Int("missing", len(plan.Missing)))
	return finish(nil)
}

// reconcile matches entries to missing slots and normalizes the hits.
// Nothing is retried within a run.
func (s *Service) reconcile(missing []Slot, entries []Entry, queriedAt time.Time) ([]Record, []SlotResult, []string) {
	loc := s.opts.TimeZone
	exact := make(map[int64]Entry, len(entries))
	offHour := make(map[int64]string)
	var unparseable []string

	for _, e := range entries {
		ts, err := ParseEntryTime(e.Time, loc)
		if err != nil {
			unparseable = append(unparseable, e.Time)
			continue
		}
		slot := NewSlot(ts, loc)
		if !slot.Time.Equal(ts) {
			offHour[slot.Unix()] = e.Time
			continue
		}
		if _, dup := exact[slot.Unix()]; !dup {
			exact[slot.Unix()] = e
		}
	}

	records := make([]Record, 0, len(missing))
	results := make([]SlotResult, 0, len(missing))
	for _, slot := range missing {
		e, ok := exact[slot.Unix()]
		if !ok {
			res := SlotResult{Slot: slot, Status: SlotStatusMissing}
			if raw, bad := offHour[slot.Unix()]; bad {
				res.Status = SlotStatusMalformed
				res.Raw = raw
			}
			results = append(results, res)
			continue
		}

		rec, defaulted := Normalize(slot, e, s.opts.Location.Name, queriedAt)
		status := SlotStatusPersisted
		if len(defaulted) > 0 {
			status = SlotStatusDefaulted
		}
		records = append(records, rec)
		results = append(results, SlotResult{Slot: slot, Status: status, Defaulted: defaulted})
	}

	return records, results, unparseable
}
