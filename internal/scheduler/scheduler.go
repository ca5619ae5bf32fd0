package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// DefaultInterval is the pause between warm cycles.
const DefaultInterval = 900 * time.Second

// State is the warmer lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var errNotIdle = errors.New("warmer already started")

// Observer receives warm cycle activity.
type Observer interface {
	WarmCycle()
	FetchFailed(component string)
}

// WarmReport summarizes one warm cycle.
type WarmReport struct {
	RunID     string
	Locations int
	Warmed    int
	Failed    int
	Canceled  bool
}

// Warmer periodically fetches every catalog location so the cache stays hot.
type Warmer struct {
	scheduler *gocron.Scheduler
	gateway   weather.Gateway
	catalog   weather.Catalog
	interval  time.Duration
	observer  Observer
	logger    *zap.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// New creates a new Warmer. A non-positive interval uses DefaultInterval.
func New(catalog weather.Catalog, gateway weather.Gateway, interval time.Duration, observer Observer, logger *zap.Logger) *Warmer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Warmer{
		scheduler: gocron.NewScheduler(time.UTC),
		gateway:   gateway,
		catalog:   catalog,
		interval:  interval,
		observer:  observer,
		logger:    logger.Named("scheduler"),
	}
}

// State returns the current lifecycle state.
func (w *Warmer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start schedules the warm job, running it immediately and then every
// interval, until Stop is called or ctx is canceled.
func (w *Warmer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return errNotIdle
	}

	runCtx, cancel := context.WithCancel(ctx)
	_, err := w.scheduler.Every(w.interval).SingletonMode().Do(func() {
		if runCtx.Err() != nil {
			return
		}
		w.RunOnce(runCtx)
	})
	if err != nil {
		cancel()
		return err
	}

	w.cancel = cancel
	w.state = StateRunning
	w.scheduler.StartAsync()
	w.logger.Info("cache warmer started", zap.Duration("interval", w.interval))

	go func() {
		<-runCtx.Done()
		w.Stop()
	}()
	return nil
}

// Stop cancels the running cycle at its next fetch boundary and cancels all
// future cycles. It is safe to call more than once.
func (w *Warmer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateStopped {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	w.state = StateStopped
	w.logger.Info("cache warmer stopped")
}

// RunOnce fetches every catalog location once, discarding the results.
// Failures are logged per location and never end the cycle early; a canceled
// ctx ends it before the next fetch.
func (w *Warmer) RunOnce(ctx context.Context) WarmReport {
	report := WarmReport{RunID: uuid.NewString()}
	log := w.logger.With(zap.String("run_id", report.RunID))
	log.Info("running cache warm job")

	locs, err := w.catalog.ListAll(ctx)
	if err != nil {
		log.Error("list locations failed", zap.Error(err))
		return report
	}
	report.Locations = len(locs)

	for _, loc := range locs {
		if ctx.Err() != nil {
			report.Canceled = true
			log.Info("cache warm job canceled", zap.Int("warmed", report.Warmed))
			return report
		}

		if _, err := w.gateway.Snapshot(ctx, loc); err != nil {
			report.Failed++
			log.Warn("warm fetch failed",
				zap.String("location", loc.Name),
				zap.String("location_id", loc.ID),
				zap.Error(err),
			)
			if w.observer != nil {
				w.observer.FetchFailed("warmer")
			}
			continue
		}
		report.Warmed++
	}

	if w.observer != nil {
		w.observer.WarmCycle()
	}
	log.Info("completed cache warm job",
		zap.Int("warmed", report.Warmed),
		zap.Int("failed", report.Failed),
	)
	return report
}
