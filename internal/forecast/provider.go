package forecast

import (
	"context"
	"time"
)

// FetchRequest describes the window a Source must cover.
type FetchRequest struct {
	Latitude  float64
	Longitude float64
	// Start is at or before the first missing slot minus one hour of slack.
	Start Slot
	// End is the last missing slot; the response must reach it.
	End      Slot
	Timezone string
}

// Source abstracts an hourly forecast provider (e.g. Open-Meteo).
type Source interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) ([]Entry, error)
}

// StateReader exposes the keys and latest slot of a record store.
// A store that does not exist yet yields an empty State, not an error.
type StateReader interface {
	ReadState(ctx context.Context) (State, error)
}

// Appender appends records to a store. It performs no duplicate checking.
type Appender interface {
	Append(ctx context.Context, records []Record) (int, error)
}

// Store is the contract the csv, sqlite and memory backends satisfy.
type Store interface {
	StateReader
	Appender
}

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant. Used for replays and tests.
type FixedClock time.Time

// Now implements Clock.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
