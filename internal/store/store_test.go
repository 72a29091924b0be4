package store_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func record(t *testing.T, value string, temp float64) forecast.Record {
	t.Helper()
	loc := berlin(t)
	ts, err := time.ParseInLocation("2006-01-02T15:04", value, loc)
	require.NoError(t, err)
	return forecast.Record{
		Location:                 "Lohmar",
		Slot:                     forecast.NewSlot(ts, loc),
		TemperatureC:             temp,
		HumidityPct:              80,
		WindSpeedKmh:             10.5,
		Condition:                forecast.ConditionCloudy,
		CloudCoverPct:            90,
		PrecipitationProbability: 20,
		PrecipitationMm:          0.1,
		QueriedAt:                time.Date(2024, 1, 1, 9, 5, 0, 0, loc),
	}
}
