package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-ledger/internal/forecast"
	"github.com/i474232898/forecast-ledger/internal/history"
	"github.com/i474232898/forecast-ledger/internal/store"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

type brokenState struct{}

func (brokenState) ReadState(context.Context) (forecast.State, error) {
	return forecast.State{}, &forecast.CorruptStateError{Source: "wetterbericht.csv", Line: 2, Err: errors.New("bad row")}
}

func newApp(t *testing.T, state forecast.StateReader, runs *history.Store) *fiber.App {
	t.Helper()
	loc := berlin(t)
	mem := store.NewMemoryStore()
	if state == nil {
		state = mem
		_, err := mem.Append(context.Background(), []forecast.Record{{
			Location: "Lohmar",
			Slot:     forecast.NewSlot(time.Date(2024, 1, 1, 10, 0, 0, 0, loc), loc),
		}})
		require.NoError(t, err)
	}
	svc := forecast.NewService(state, mem, nil, forecast.FixedClock(time.Date(2024, 1, 1, 10, 20, 0, 0, loc)), forecast.Options{
		Location: forecast.Location{Name: "Lohmar", Latitude: 50.8387, Longitude: 7.2157},
		TimeZone: loc,
		Planner:  forecast.Planner{Horizon: 3},
	}, nil)

	app := fiber.New()
	RegisterRoutes(app, svc, runs)
	return app
}

func get(t *testing.T, app *fiber.App, target string, out any) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestState(t *testing.T) {
	app := newApp(t, nil, history.New(10, 0))

	var body struct {
		Timezone      string `json:"timezone"`
		Stored        int    `json:"stored"`
		LastPersisted string `json:"lastPersisted"`
	}
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/state", &body))

	assert.Equal(t, "Europe/Berlin", body.Timezone)
	assert.Equal(t, 1, body.Stored)
	assert.Equal(t, "2024-01-01T10:00:00+01:00", body.LastPersisted)
}

func TestPlan(t *testing.T) {
	app := newApp(t, nil, history.New(10, 0))

	var plan struct {
		Now     string   `json:"now"`
		Missing []string `json:"missing"`
	}
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/plan", &plan))
	assert.Equal(t, "2024-01-01T10:00:00+01:00", plan.Now)
	assert.Equal(t, []string{"2024-01-01T11:00:00+01:00", "2024-01-01T12:00:00+01:00"}, plan.Missing)

	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/plan?now=2024-01-01T12:30:00Z", &plan))
	assert.Equal(t, "2024-01-01T13:00:00+01:00", plan.Now)
	assert.Len(t, plan.Missing, 5)

	assert.Equal(t, http.StatusBadRequest, get(t, app, "/api/v1/plan?now=tomorrow", nil))
}

func TestPlan_CorruptState(t *testing.T) {
	app := newApp(t, brokenState{}, history.New(10, 0))

	assert.Equal(t, http.StatusInternalServerError, get(t, app, "/api/v1/plan", nil))
	assert.Equal(t, http.StatusInternalServerError, get(t, app, "/api/v1/state", nil))
}

func TestRuns(t *testing.T) {
	runs := history.New(10, 0)
	app := newApp(t, nil, runs)

	assert.Equal(t, http.StatusNotFound, get(t, app, "/api/v1/runs/latest", nil))

	runs.Add(forecast.RunReport{ID: "first", StartedAt: time.Now()})
	runs.Add(forecast.RunReport{ID: "second", StartedAt: time.Now(), Written: 3})

	var latest forecast.RunReport
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/runs/latest", &latest))
	assert.Equal(t, "second", latest.ID)
	assert.Equal(t, 3, latest.Written)

	var list struct {
		Runs []struct {
			ID string `json:"id"`
		} `json:"runs"`
	}
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/runs?limit=1", &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "second", list.Runs[0].ID)
}

// TestRunsLimitValidation verifies that the runs endpoint enforces the
// expected 1-500 range for the `limit` query parameter.
func TestRunsLimitValidation(t *testing.T) {
	app := newApp(t, nil, history.New(10, 0))

	assert.Equal(t, http.StatusBadRequest, get(t, app, "/api/v1/runs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, app, "/api/v1/runs?limit=501", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, app, "/api/v1/runs?limit=ten", nil))
}
