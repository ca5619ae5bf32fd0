package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// DefaultBaseURL is the public Open-Meteo API.
const DefaultBaseURL = "https://api.open-meteo.com"

const defaultInterval = time.Hour

// OpenMeteoGateway implements weather.Gateway for Open-Meteo. Raw responses
// go through the cache; only cache misses reach the transport.
type OpenMeteoGateway struct {
	baseURL   string
	cache     weather.Cache
	transport *Transport
	logger    *zap.Logger
}

// NewOpenMeteoGateway creates a gateway. An empty baseURL uses DefaultBaseURL.
func NewOpenMeteoGateway(baseURL string, cache weather.Cache, transport *Transport, logger *zap.Logger) *OpenMeteoGateway {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenMeteoGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		cache:     cache,
		transport: transport,
		logger:    logger.Named("openmeteo"),
	}
}

// Snapshot returns the most recent hourly temperature, wind speed and pressure.
func (g *OpenMeteoGateway) Snapshot(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	q, err := weather.NewQuery(loc.Latitude, loc.Longitude, weather.SnapshotParameters)
	if err != nil {
		return weather.Snapshot{}, err
	}

	payload, err := g.fetch(ctx, q)
	if err != nil {
		return weather.Snapshot{}, err
	}

	last := func(name string) (float64, error) {
		values, ok := payload.Variable(name)
		if !ok || len(values) == 0 {
			return 0, fmt.Errorf("%w: no values for %s", weather.ErrDecode, name)
		}
		return values[len(values)-1], nil
	}

	temperature, err := last("temperature_2m")
	if err != nil {
		return weather.Snapshot{}, err
	}
	windSpeed, err := last("wind_speed_10m")
	if err != nil {
		return weather.Snapshot{}, err
	}
	pressure, err := last("pressure_msl")
	if err != nil {
		return weather.Snapshot{}, err
	}

	return weather.Snapshot{
		Location:    loc,
		Timestamp:   payload.Timestamp(payload.Len() - 1).UTC(),
		Temperature: temperature,
		WindSpeed:   windSpeed,
		Pressure:    pressure,
	}, nil
}

// Series returns the hourly payload of parameters over [start, end].
func (g *OpenMeteoGateway) Series(ctx context.Context, loc weather.Location, parameters []string, start, end time.Time) (weather.HourlyPayload, error) {
	q, err := weather.NewQuery(loc.Latitude, loc.Longitude, parameters, weather.WithDateRange(start, end))
	if err != nil {
		return weather.HourlyPayload{}, err
	}
	return g.fetch(ctx, q)
}

func (g *OpenMeteoGateway) fetch(ctx context.Context, q weather.WeatherQuery) (weather.HourlyPayload, error) {
	sig := q.Signature()

	raw, err := g.cache.GetOrFetch(ctx, sig, func(ctx context.Context) ([]byte, error) {
		g.logger.Debug("cache miss, fetching",
			zap.String("signature", string(sig)),
			zap.Float64("latitude", q.Latitude()),
			zap.Float64("longitude", q.Longitude()),
		)

		body, err := g.transport.Send(ctx, func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, g.requestURL(q), nil)
		})
		if err != nil {
			return nil, providerError(err)
		}
		// Never cache a payload we cannot decode.
		if _, err := DecodeHourly(body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return weather.HourlyPayload{}, err
	}

	return DecodeHourly(raw)
}

func (g *OpenMeteoGateway) requestURL(q weather.WeatherQuery) string {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", q.Latitude()))
	values.Set("longitude", fmt.Sprintf("%f", q.Longitude()))
	values.Set("hourly", strings.Join(q.Parameters(), ","))
	values.Set("timeformat", "unixtime")
	if start, end, ok := q.DateRange(); ok {
		values.Set("start_date", start)
		values.Set("end_date", end)
	}
	return fmt.Sprintf("%s/v1/forecast?%s", g.baseURL, values.Encode())
}

// providerError surfaces the provider's own reason for rejected requests.
func providerError(err error) error {
	var se *StatusError
	if !errors.As(err, &se) || !errors.Is(err, weather.ErrProvider) {
		return err
	}
	var body struct {
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(se.Body, &body) == nil && body.Reason != "" {
		return fmt.Errorf("%w (status %d): %s", weather.ErrProvider, se.Code, body.Reason)
	}
	return fmt.Errorf("%w: %w", weather.ErrProvider, se)
}

// DecodeHourly decodes the "hourly" block of a forecast response requested
// with timeformat=unixtime. The time axis must be evenly spaced and every
// variable must have one value per timestamp; JSON nulls become NaN.
func DecodeHourly(raw []byte) (weather.HourlyPayload, error) {
	var envelope struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return weather.HourlyPayload{}, fmt.Errorf("%w: %v", weather.ErrDecode, err)
	}
	if envelope.Hourly == nil {
		return weather.HourlyPayload{}, fmt.Errorf("%w: missing hourly block", weather.ErrDecode)
	}

	rawTimes, ok := envelope.Hourly["time"]
	if !ok {
		return weather.HourlyPayload{}, fmt.Errorf("%w: missing hourly time axis", weather.ErrDecode)
	}
	var times []int64
	if err := json.Unmarshal(rawTimes, &times); err != nil {
		return weather.HourlyPayload{}, fmt.Errorf("%w: time axis: %v", weather.ErrDecode, err)
	}

	interval := defaultInterval
	if len(times) > 1 {
		interval = time.Duration(times[1]-times[0]) * time.Second
		if interval <= 0 {
			return weather.HourlyPayload{}, fmt.Errorf("%w: non-increasing time axis", weather.ErrDecode)
		}
		for i := 2; i < len(times); i++ {
			if time.Duration(times[i]-times[i-1])*time.Second != interval {
				return weather.HourlyPayload{}, fmt.Errorf("%w: uneven time axis at index %d", weather.ErrDecode, i)
			}
		}
	}

	payload := weather.HourlyPayload{Interval: interval}
	if len(times) > 0 {
		payload.StartTime = time.Unix(times[0], 0).UTC()
		payload.EndTime = time.Unix(times[len(times)-1], 0).UTC().Add(interval)
	}

	names := make([]string, 0, len(envelope.Hourly))
	for name := range envelope.Hourly {
		if name != "time" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var column []*float64
		if err := json.Unmarshal(envelope.Hourly[name], &column); err != nil {
			return weather.HourlyPayload{}, fmt.Errorf("%w: variable %s: %v", weather.ErrDecode, name, err)
		}
		if len(column) != len(times) {
			return weather.HourlyPayload{}, fmt.Errorf("%w: variable %s has %d values, time axis has %d",
				weather.ErrDecode, name, len(column), len(times))
		}
		values := make([]float64, len(column))
		for i, v := range column {
			if v == nil {
				values[i] = math.NaN()
				continue
			}
			values[i] = *v
		}
		payload.Variables = append(payload.Variables, weather.Variable{Name: name, Values: values})
	}

	return payload, nil
}
