package providers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const forecastBody = `{
	"latitude": 52.52,
	"longitude": 13.419998,
	"utc_offset_seconds": 0,
	"hourly_units": {"time": "unixtime", "temperature_2m": "°C"},
	"hourly": {
		"time": [1704067200, 1704070800, 1704074400],
		"temperature_2m": [1.5, 2.0, 2.5],
		"wind_speed_10m": [10.1, null, 12.3],
		"pressure_msl": [1013.2, 1012.8, 1012.1]
	}
}`

var berlin = weather.Location{ID: "b", Name: "Berlin", Latitude: 52.52, Longitude: 13.41}

type gatewayFixture struct {
	gateway  *OpenMeteoGateway
	requests *atomic.Int32
	lastURL  atomic.Pointer[url.URL]
}

func newGatewayFixture(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{requests: &atomic.Int32{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		u := *r.URL
		f.lastURL.Store(&u)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	tr := NewTransport(srv.Client(), DefaultRetryPolicy(),
		WithSleepFunc(func(context.Context, time.Duration) error { return nil }),
		WithTransportLogger(logger),
	)
	cache := store.NewCacheStore(weather.CacheTTL, store.WithLogger(logger))
	f.gateway = NewOpenMeteoGateway(srv.URL, cache, tr, logger)
	return f
}

func respond(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestDecodeHourly(t *testing.T) {
	payload, err := DecodeHourly([]byte(forecastBody))
	require.NoError(t, err)

	assert.Equal(t, time.Unix(1704067200, 0).UTC(), payload.StartTime)
	assert.Equal(t, time.Unix(1704078000, 0).UTC(), payload.EndTime)
	assert.Equal(t, time.Hour, payload.Interval)
	assert.Equal(t, 3, payload.Len())

	temps, ok := payload.Variable("temperature_2m")
	require.True(t, ok)
	assert.Equal(t, []float64{1.5, 2.0, 2.5}, temps)

	wind, ok := payload.Variable("wind_speed_10m")
	require.True(t, ok)
	assert.True(t, math.IsNaN(wind[1]))

	_, ok = payload.Variable("time")
	assert.False(t, ok)
}

func TestDecodeHourlyRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"missing hourly", `{"latitude": 1}`},
		{"missing time axis", `{"hourly": {"rain": [1]}}`},
		{"string timestamps", `{"hourly": {"time": ["2024-01-01T00:00"]}}`},
		{"length mismatch", `{"hourly": {"time": [0, 3600], "rain": [1]}}`},
		{"uneven axis", `{"hourly": {"time": [0, 3600, 9000]}}`},
		{"decreasing axis", `{"hourly": {"time": [3600, 0]}}`},
		{"non numeric value", `{"hourly": {"time": [0], "rain": ["x"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHourly([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, weather.ErrDecode))
		})
	}
}

func TestDecodeHourlyEmptyAxis(t *testing.T) {
	payload, err := DecodeHourly([]byte(`{"hourly": {"time": [], "rain": []}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, payload.Len())

	rows, err := weather.Assemble(payload, []string{"rain"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGatewaySnapshotTakesLastValues(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusOK, forecastBody))

	snap, err := f.gateway.Snapshot(context.Background(), berlin)
	require.NoError(t, err)

	assert.Equal(t, berlin, snap.Location)
	assert.Equal(t, time.Unix(1704074400, 0).UTC(), snap.Timestamp)
	assert.Equal(t, 2.5, snap.Temperature)
	assert.Equal(t, 12.3, snap.WindSpeed)
	assert.Equal(t, 1012.1, snap.Pressure)

	q := f.lastURL.Load().Query()
	assert.Equal(t, "/v1/forecast", f.lastURL.Load().Path)
	assert.Equal(t, "52.520000", q.Get("latitude"))
	assert.Equal(t, "13.410000", q.Get("longitude"))
	assert.Equal(t, "pressure_msl,temperature_2m,wind_speed_10m", q.Get("hourly"))
	assert.Equal(t, "unixtime", q.Get("timeformat"))
	assert.Empty(t, q.Get("start_date"))
}

func TestGatewaySnapshotServedFromCache(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusOK, forecastBody))
	ctx := context.Background()

	first, err := f.gateway.Snapshot(ctx, berlin)
	require.NoError(t, err)
	second, err := f.gateway.Snapshot(ctx, berlin)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestGatewaySnapshotEmptyPayload(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusOK,
		`{"hourly": {"time": [], "temperature_2m": [], "wind_speed_10m": [], "pressure_msl": []}}`))

	_, err := f.gateway.Snapshot(context.Background(), berlin)
	assert.True(t, errors.Is(err, weather.ErrDecode))
}

func TestGatewayDoesNotCacheMalformedPayloads(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusOK, `{"hourly": {"time": [0, 3600], "temperature_2m": [1]}}`))
	ctx := context.Background()

	_, err := f.gateway.Snapshot(ctx, berlin)
	assert.True(t, errors.Is(err, weather.ErrDecode))
	_, err = f.gateway.Snapshot(ctx, berlin)
	assert.True(t, errors.Is(err, weather.ErrDecode))
	assert.Equal(t, int32(2), f.requests.Load())
}

func TestGatewaySurfacesProviderReason(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusBadRequest,
		`{"error": true, "reason": "Cannot initialize WeatherVariable from invalid String value foo"}`))

	_, err := f.gateway.Series(context.Background(), berlin, []string{"foo"},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.Is(err, weather.ErrProvider))
	assert.Contains(t, err.Error(), "invalid String value foo")
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestGatewayRetryExhausted(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusServiceUnavailable, ""))

	_, err := f.gateway.Snapshot(context.Background(), berlin)
	assert.True(t, errors.Is(err, weather.ErrRetryExhausted))
	assert.Equal(t, int32(5), f.requests.Load())
}

func TestGatewaySeriesSendsDateRange(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusOK, `{"hourly": {"time": [1704067200, 1704070800], "rain": [0, 0.2]}}`))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	payload, err := f.gateway.Series(context.Background(), berlin, []string{"rain"}, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.Len())

	q := f.lastURL.Load().Query()
	assert.Equal(t, "2024-01-01", q.Get("start_date"))
	assert.Equal(t, "2024-01-02", q.Get("end_date"))
	assert.Equal(t, "rain", q.Get("hourly"))
}

func TestGatewayRejectsInvalidCoordinates(t *testing.T) {
	f := newGatewayFixture(t, respond(http.StatusOK, forecastBody))

	_, err := f.gateway.Snapshot(context.Background(), weather.Location{Name: "Nowhere", Latitude: 120})
	assert.True(t, errors.Is(err, weather.ErrValidation))
	assert.Equal(t, int32(0), f.requests.Load())
}
