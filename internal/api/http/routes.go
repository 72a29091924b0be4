package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/forecast-ledger/internal/forecast"
	"github.com/i474232898/forecast-ledger/internal/history"
)

var validate = validator.New()

// Planner is the read-only part of forecast.Service the API needs.
type Planner interface {
	Location() forecast.Location
	TimeZone() *time.Location
	Now() forecast.Slot
	Preview(ctx context.Context, now forecast.Slot) (forecast.Plan, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, planner Planner, runs *history.Store) {
	v1 := app.Group("/api/v1")

	v1.Get("/state", func(c *fiber.Ctx) error {
		plan, err := planner.Preview(c.UserContext(), planner.Now())
		if err != nil {
			return stateError(err)
		}

		return c.JSON(fiber.Map{
			"location":      planner.Location(),
			"timezone":      planner.TimeZone().String(),
			"stored":        plan.Stored,
			"lastPersisted": plan.Last,
		})
	})

	v1.Get("/plan", func(c *fiber.Ctx) error {
		var req planQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		now := planner.Now()
		if !req.Now.IsZero() {
			now = forecast.NewSlot(req.Now, planner.TimeZone())
		}

		plan, err := planner.Preview(c.UserContext(), now)
		if err != nil {
			return stateError(err)
		}
		return c.JSON(plan)
	})

	v1.Get("/runs", func(c *fiber.Ctx) error {
		var req runsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(fiber.Map{
			"runs": runs.List(req.Limit),
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		report, err := runs.Latest()
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read run history")
		}
		return c.JSON(report)
	})
}

func stateError(err error) error {
	var cse *forecast.CorruptStateError
	if errors.As(err, &cse) {
		return fiber.NewError(fiber.StatusInternalServerError, cse.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to read store state")
}

// planQuery holds query parameters for the plan endpoint.
type planQuery struct {
	Now time.Time
}

func (p *planQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("now")
	if raw == "" {
		return nil
	}
	ts, err := parseTime(raw)
	if err != nil {
		return err
	}
	p.Now = ts
	return nil
}

// runsQuery holds query parameters for the runs endpoint.
type runsQuery struct {
	Limit int `validate:"min=1,max=500"`
}

func (r *runsQuery) bind(c *fiber.Ctx) error {
	r.Limit = 20
	raw := c.Query("limit")
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	r.Limit = n
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
