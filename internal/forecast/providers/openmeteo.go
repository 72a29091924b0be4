package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

// DefaultOpenMeteoURL is the public hourly forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// hourLayout is the local wall-time format Open-Meteo uses for start_hour,
// end_hour and the hourly time array.
const hourLayout = "2006-01-02T15:04"

const hourlyVariables = "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code,cloud_cover,precipitation_probability,precipitation"

// OpenMeteoProvider implements forecast.Source for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewOpenMeteoProvider creates a provider. An empty baseURL uses DefaultOpenMeteoURL.
func NewOpenMeteoProvider(client *http.Client, baseURL string, log *zap.Logger) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if log == nil {
		log = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Interval:    1 * time.Hour,
		Timeout:     30 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client},
		circuit: cb,
		log:     log,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type hourlyPayload struct {
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature              []*float64 `json:"temperature_2m"`
		RelativeHumidity         []*float64 `json:"relative_humidity_2m"`
		WindSpeed                []*float64 `json:"wind_speed_10m"`
		WeatherCode              []*int     `json:"weather_code"`
		CloudCover               []*float64 `json:"cloud_cover"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		Precipitation            []*float64 `json:"precipitation"`
	} `json:"hourly"`
}

// Fetch requests hourly data for the local window req.Start..req.End.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, req forecast.FetchRequest) ([]forecast.Entry, error) {
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("openmeteo: window end %s before start %s", req.End, req.Start)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', 4, 64))
		values.Set("hourly", hourlyVariables)
		values.Set("timezone", req.Timezone)
		values.Set("start_hour", req.Start.Format(hourLayout))
		values.Set("end_hour", req.End.Format(hourLayout))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, &forecast.FetchError{Source: p.name, Err: err}
	}
	defer resp.Body.Close()

	var payload hourlyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &forecast.FetchError{Source: p.name, Err: fmt.Errorf("decode response: %w", err)}
	}

	h := payload.Hourly
	entries := make([]forecast.Entry, 0, len(h.Time))
	for i, ts := range h.Time {
		e := forecast.Entry{
			Time:                     ts,
			Temperature:              at(h.Temperature, i),
			RelativeHumidity:         at(h.RelativeHumidity, i),
			WindSpeed:                at(h.WindSpeed, i),
			CloudCover:               at(h.CloudCover, i),
			PrecipitationProbability: at(h.PrecipitationProbability, i),
			Precipitation:            at(h.Precipitation, i),
		}
		if code := at(h.WeatherCode, i); code != nil {
			label := string(mapOpenMeteoCondition(*code))
			e.Condition = &label
		}
		entries = append(entries, e)
	}

	p.log.Debug("openmeteo response decoded",
		zap.Int("entries", len(entries)),
		zap.Stringer("start", req.Start),
		zap.Stringer("end", req.End))
	return entries, nil
}

// at returns the i-th element of a column, nil if the column is short or the value null.
func at[T any](col []*T, i int) *T {
	if i >= len(col) {
		return nil
	}
	return col[i]
}

// mapOpenMeteoCondition maps WMO weather interpretation codes to a label.
func mapOpenMeteoCondition(code int) forecast.Condition {
	switch {
	case code == 0:
		return forecast.ConditionClear
	case code >= 1 && code <= 3:
		return forecast.ConditionCloudy
	case code == 45 || code == 48:
		return forecast.ConditionFog
	case code >= 51 && code <= 57:
		return forecast.ConditionDrizzle
	case code >= 61 && code <= 67:
		return forecast.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return forecast.ConditionSnow
	case code >= 80 && code <= 82:
		return forecast.ConditionShowers
	case code >= 95:
		return forecast.ConditionStorm
	default:
		return forecast.ConditionUnknown
	}
}
