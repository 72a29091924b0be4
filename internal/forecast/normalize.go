package forecast

import (
	"fmt"
	"strings"
	"time"
)

// Field names reported when a value was defaulted.
const (
	FieldTemperature              = "temperature"
	FieldRelativeHumidity         = "relative_humidity"
	FieldWindSpeed                = "wind_speed"
	FieldCondition                = "condition"
	FieldCloudCover               = "cloud_cover"
	FieldPrecipitationProbability = "precipitation_probability"
	FieldPrecipitation            = "precipitation"
)

// timestampLayouts are tried in order when matching entries to slots.
// Open-Meteo returns local wall time without an offset.
var timestampLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseEntryTime parses an entry timestamp in loc. Timestamps carrying
// an explicit offset are converted into loc.
func ParseEntryTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Normalize maps a raw entry onto the record schema. It is pure.
// Absent numeric fields become zero and an absent condition becomes
// ConditionUnknown; the names of defaulted fields are returned.
func Normalize(slot Slot, e Entry, location string, queriedAt time.Time) (Record, []string) {
	var defaulted []string
	num := func(name string, v *float64) float64 {
		if v == nil {
			defaulted = append(defaulted, name)
			return 0
		}
		return *v
	}

	r := Record{
		Location:                 location,
		Slot:                     slot,
		TemperatureC:             num(FieldTemperature, e.Temperature),
		HumidityPct:              num(FieldRelativeHumidity, e.RelativeHumidity),
		WindSpeedKmh:             num(FieldWindSpeed, e.WindSpeed),
		CloudCoverPct:            num(FieldCloudCover, e.CloudCover),
		PrecipitationProbability: num(FieldPrecipitationProbability, e.PrecipitationProbability),
		PrecipitationMm:          num(FieldPrecipitation, e.Precipitation),
		QueriedAt:                queriedAt,
	}

	if e.Condition == nil || strings.TrimSpace(*e.Condition) == "" {
		defaulted = append(defaulted, FieldCondition)
		r.Condition = ConditionUnknown
	} else {
		r.Condition = Condition(strings.TrimSpace(*e.Condition))
	}

	return r, defaulted
}
