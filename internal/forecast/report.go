package forecast

import (
	"time"
)

// SlotStatus is the outcome of one missing slot within a run.
type SlotStatus string

const (
	// SlotStatusPersisted means the slot was normalized without defaults.
	SlotStatusPersisted SlotStatus = "persisted"
	// SlotStatusDefaulted means the slot was normalized but some fields were absent.
	SlotStatusDefaulted SlotStatus = "defaulted"
	// SlotStatusMissing means the response had no entry for the slot.
	SlotStatusMissing SlotStatus = "missing"
	// SlotStatusMalformed means the response only had a non-aligned timestamp inside the slot's hour.
	SlotStatusMalformed SlotStatus = "malformed"
)

// SlotResult is the per-slot result collected into a RunReport.
type SlotResult struct {
	Slot      Slot       `json:"slot"`
	Status    SlotStatus `json:"status"`
	Defaulted []string   `json:"defaulted,omitempty"`
	Raw       string     `json:"raw,omitempty"`
}

// Plan is the outcome of planning against the current store state.
type Plan struct {
	Now     Slot   `json:"now"`
	Last    *Slot  `json:"lastPersisted,omitempty"`
	Targets []Slot `json:"targets"`
	Missing []Slot `json:"missing"`
	// Stored is the number of records in the store at planning time.
	Stored int `json:"stored"`
}

// RunReport summarises a single invocation.
type RunReport struct {
	ID          string        `json:"id"`
	Location    string        `json:"location"`
	Source      string        `json:"source"`
	Plan        Plan          `json:"plan"`
	Results     []SlotResult  `json:"results,omitempty"`
	Unparseable []string      `json:"unparseable,omitempty"`
	Written     int           `json:"written"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Err         string        `json:"error,omitempty"`
}

// Count returns the number of results with the given status.
func (r RunReport) Count(status SlotStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Timestamp returns the report's start time.
func (r RunReport) Timestamp() time.Time {
	return r.StartedAt
}
