package forecast

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionDrizzle Condition = "drizzle"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionShowers Condition = "showers"
	ConditionStorm   Condition = "storm"
)

// Location is the single place a ledger tracks.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Slot is an hour-aligned instant in the reference timezone.
// The zero Slot is not a valid slot; use NewSlot.
type Slot struct {
	time.Time
}

// NewSlot floors t to the start of its hour in loc. The offset of t is
// kept, so both instants of a repeated autumn hour stay distinct.
func NewSlot(t time.Time, loc *time.Location) Slot {
	t = t.In(loc)
	sub := time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return Slot{t.Add(-sub)}
}

// Add returns the slot n hours after s (n may be negative).
func (s Slot) Add(n int) Slot {
	return Slot{s.Time.Add(time.Duration(n) * time.Hour)}
}

// Next returns the following slot.
func (s Slot) Next() Slot {
	return s.Add(1)
}

// Before reports whether s is strictly earlier than o.
func (s Slot) Before(o Slot) bool {
	return s.Time.Before(o.Time)
}

// After reports whether s is strictly later than o.
func (s Slot) After(o Slot) bool {
	return s.Time.After(o.Time)
}

// Equal reports whether s and o are the same instant.
func (s Slot) Equal(o Slot) bool {
	return s.Time.Equal(o.Time)
}

// Key returns the composite (date, hour) key under which s is persisted.
func (s Slot) Key() SlotKey {
	return SlotKey{Date: s.Format("2006-01-02"), Hour: s.Hour()}
}

// String renders the slot as local ISO-8601 without seconds.
func (s Slot) String() string {
	return s.Format("2006-01-02T15:04")
}

// MarshalJSON keeps slots readable in reports and API responses.
func (s Slot) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.Format(time.RFC3339) + `"`), nil
}

// SlotKey identifies one persisted record.
type SlotKey struct {
	Date string `json:"date"` // YYYY-MM-DD in the reference timezone
	Hour int    `json:"hour"`
}

// KeySet is the set of slot keys already present in a store.
type KeySet map[SlotKey]struct{}

// Add inserts k.
func (ks KeySet) Add(k SlotKey) {
	ks[k] = struct{}{}
}

// Has reports whether k is present. A nil set contains nothing.
func (ks KeySet) Has(k SlotKey) bool {
	_, ok := ks[k]
	return ok
}

// Len returns the number of keys.
func (ks KeySet) Len() int {
	return len(ks)
}

// State is what a store knows about previous runs.
type State struct {
	Keys KeySet
	// Last is the most recent persisted slot, nil for an empty store.
	Last *Slot
	// Count is the number of persisted records read.
	Count int
	// Skipped counts corrupt rows ignored under the skip policy.
	Skipped int
}

// Entry is one raw row returned by a Source. Absent fields are nil.
type Entry struct {
	Time                     string
	Temperature              *float64
	RelativeHumidity         *float64
	WindSpeed                *float64
	Condition                *string
	CloudCover               *float64
	PrecipitationProbability *float64
	Precipitation            *float64
}

// Record is the persisted representation of one slot's forecast.
type Record struct {
	Location                 string    `json:"location"`
	Slot                     Slot      `json:"slot"`
	TemperatureC             float64   `json:"temperatureC"`
	HumidityPct              float64   `json:"humidityPercent"`
	WindSpeedKmh             float64   `json:"windSpeedKmh"`
	Condition                Condition `json:"condition"`
	CloudCoverPct            float64   `json:"cloudCoverPercent"`
	PrecipitationProbability float64   `json:"precipitationProbabilityPercent"`
	PrecipitationMm          float64   `json:"precipitationMm"`
	QueriedAt                time.Time `json:"queriedAt"`
}
