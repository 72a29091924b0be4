package forecast

import (
	"sort"
)

// DefaultHorizon is the number of forward-looking slots always targeted.
const DefaultHorizon = 3

// Planner computes which slots a run must populate.
type Planner struct {
	// Horizon is the number of slots starting at now. Values < 1 use DefaultHorizon.
	Horizon int
	// MaxBackfill caps how many hours before now are backfilled.
	// Zero means unbounded.
	MaxBackfill int
}

// Plan returns the target set: the rolling horizon now..now+(Horizon-1)h,
// plus every slot in (last, now] when last is known and earlier than now.
// The result is sorted ascending and free of duplicates.
func (p Planner) Plan(now Slot, last *Slot) []Slot {
	horizon := p.Horizon
	if horizon < 1 {
		horizon = DefaultHorizon
	}

	seen := make(map[int64]struct{}, horizon)
	targets := make([]Slot, 0, horizon)
	add := func(s Slot) {
		k := s.Unix()
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		targets = append(targets, s)
	}

	for i := 0; i < horizon; i++ {
		add(now.Add(i))
	}

	if last != nil && last.Before(now) {
		start := last.Next()
		if p.MaxBackfill > 0 {
			if floor := now.Add(-p.MaxBackfill); start.Before(floor) {
				start = floor
			}
		}
		for s := start; !s.After(now); s = s.Next() {
			add(s)
		}
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Before(targets[j]) })
	return targets
}

// Diff returns the targets whose keys are not in existing, preserving order.
// Targets sharing a key (the repeated hour when clocks go back) yield only
// the earliest one.
func Diff(targets []Slot, existing KeySet) []Slot {
	missing := make([]Slot, 0, len(targets))
	seen := make(KeySet, len(targets))
	for _, s := range targets {
		k := s.Key()
		if existing.Has(k) || seen.Has(k) {
			continue
		}
		seen.Add(k)
		missing = append(missing, s)
	}
	return missing
}

// Window returns the fetch bounds for a sorted missing set: one hour of
// slack before the first slot through the last slot. ok is false when
// missing is empty.
func Window(missing []Slot) (start, end Slot, ok bool) {
	if len(missing) == 0 {
		return Slot{}, Slot{}, false
	}
	return missing[0].Add(-1), missing[len(missing)-1], true
}
