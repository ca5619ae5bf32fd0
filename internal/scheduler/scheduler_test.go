package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

type fakeCatalog []weather.Location

func (c fakeCatalog) ListAll(context.Context) ([]weather.Location, error) {
	return c, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	fetched []string
	fail    map[string]bool
	onFetch func()
}

func (g *fakeGateway) Snapshot(_ context.Context, loc weather.Location) (weather.Snapshot, error) {
	g.mu.Lock()
	g.fetched = append(g.fetched, loc.Name)
	hook := g.onFetch
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if g.fail[loc.Name] {
		return weather.Snapshot{}, weather.ErrNetwork
	}
	return weather.Snapshot{Location: loc}, nil
}

func (g *fakeGateway) Series(context.Context, weather.Location, []string, time.Time, time.Time) (weather.HourlyPayload, error) {
	return weather.HourlyPayload{}, errors.New("not used")
}

func (g *fakeGateway) Fetched() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fetched...)
}

type countingObserver struct {
	cycles, failures atomic.Int32
}

func (o *countingObserver) WarmCycle()         { o.cycles.Add(1) }
func (o *countingObserver) FetchFailed(string) { o.failures.Add(1) }

var locations = fakeCatalog{
	{ID: "1", Name: "Berlin"},
	{ID: "2", Name: "Oslo"},
	{ID: "3", Name: "Paris"},
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	gw := &fakeGateway{fail: map[string]bool{"Oslo": true}}
	obs := &countingObserver{}
	w := New(locations, gw, time.Hour, obs, zaptest.NewLogger(t))

	report := w.RunOnce(context.Background())

	assert.Equal(t, []string{"Berlin", "Oslo", "Paris"}, gw.Fetched())
	assert.Equal(t, 3, report.Locations)
	assert.Equal(t, 2, report.Warmed)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Canceled)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, int32(1), obs.cycles.Load())
	assert.Equal(t, int32(1), obs.failures.Load())
}

func TestRunOnceStopsAtNextFetchBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &fakeGateway{}
	// Cancel while the first fetch is in progress.
	gw.onFetch = cancel
	obs := &countingObserver{}
	w := New(locations, gw, time.Hour, obs, zaptest.NewLogger(t))

	report := w.RunOnce(ctx)

	assert.Equal(t, []string{"Berlin"}, gw.Fetched())
	assert.True(t, report.Canceled)
	assert.Equal(t, 1, report.Warmed)
	assert.Equal(t, int32(0), obs.cycles.Load())
}

func TestWarmerLifecycle(t *testing.T) {
	gw := &fakeGateway{}
	w := New(locations, gw, time.Hour, nil, zap.NewNop())
	assert.Equal(t, StateIdle, w.State())

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, StateRunning, w.State())
	assert.Error(t, w.Start(context.Background()), "a running warmer cannot be started again")

	// The first cycle runs immediately.
	require.Eventually(t, func() bool {
		return len(gw.Fetched()) == len(locations)
	}, 2*time.Second, 10*time.Millisecond)

	w.Stop()
	assert.Equal(t, StateStopped, w.State())
	w.Stop()
	assert.Equal(t, StateStopped, w.State())

	assert.Error(t, w.Start(context.Background()), "a stopped warmer cannot be restarted")
}

func TestWarmerStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New(locations, &fakeGateway{}, time.Hour, nil, zap.NewNop())

	require.NoError(t, w.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return w.State() == StateStopped
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewDefaultsInterval(t *testing.T) {
	w := New(locations, &fakeGateway{}, 0, nil, zaptest.NewLogger(t))
	assert.Equal(t, DefaultInterval, w.interval)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
