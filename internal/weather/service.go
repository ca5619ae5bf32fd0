package weather

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FailureObserver is notified of contained per-location failures.
type FailureObserver interface {
	FetchFailed(component string)
}

// Service fans gateway calls out over locations and serves single-location
// queries for the API layer.
type Service struct {
	gateway     Gateway
	catalog     Catalog
	logger      *zap.Logger
	concurrency int
	observer    FailureObserver
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithConcurrency bounds the number of in-flight fetches in FetchAll.
// n <= 0 means unbounded.
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) {
		s.concurrency = n
	}
}

// WithFailureObserver reports contained fetch failures, e.g. to metrics.
func WithFailureObserver(o FailureObserver) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService creates a new Service.
func NewService(gateway Gateway, catalog Catalog, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		gateway: gateway,
		catalog: catalog,
		logger:  logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll fetches a snapshot for every location concurrently. It waits for
// every fetch to finish; a failing location is reported in its own result and
// never affects the others. Every input location appears in the output.
func (s *Service) FetchAll(ctx context.Context, locs []Location) map[string]FetchResult {
	results := make([]FetchResult, len(locs))

	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	for i, loc := range locs {
		i, loc := i, loc
		g.Go(func() error {
			results[i] = s.fetchOne(ctx, loc)
			// Never return the error: a failure must not cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]FetchResult, len(results))
	for i, r := range results {
		out[resultKey(out, r.Location, i)] = r
	}
	return out
}

// resultKey returns loc's key, suffixed with its ID and then its input index
// until the key is unused.
func resultKey(taken map[string]FetchResult, loc Location, index int) string {
	key := loc.Key()
	if _, dup := taken[key]; !dup {
		return key
	}
	if loc.ID != "" {
		key = fmt.Sprintf("%s#%s", loc.Key(), loc.ID)
		if _, dup := taken[key]; !dup {
			return key
		}
	}
	for n := index; ; n++ {
		key = fmt.Sprintf("%s#%d", loc.Key(), n)
		if _, dup := taken[key]; !dup {
			return key
		}
	}
}

func (s *Service) fetchOne(ctx context.Context, loc Location) (res FetchResult) {
	res.Location = loc
	defer func() {
		if p := recover(); p != nil {
			res.Snapshot = nil
			res.Err = fmt.Errorf("panic fetching %s: %v", loc.Key(), p)
			s.fail(loc, res.Err)
		}
	}()

	snap, err := s.gateway.Snapshot(ctx, loc)
	if err != nil {
		res.Err = err
		s.fail(loc, err)
		return res
	}
	res.Snapshot = &snap
	return res
}

func (s *Service) fail(loc Location, err error) {
	s.logger.Error("fetch failed",
		zap.String("location", loc.Name),
		zap.String("location_id", loc.ID),
		zap.Error(err),
	)
	if s.observer != nil {
		s.observer.FetchFailed("dashboard")
	}
}

// Dashboard fetches snapshots for every location in the catalog.
func (s *Service) Dashboard(ctx context.Context) (map[string]FetchResult, error) {
	locs, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	s.logger.Debug("dashboard fetch", zap.Int("locations", len(locs)))
	return s.FetchAll(ctx, locs), nil
}

// Locations returns the catalog contents.
func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	return s.catalog.ListAll(ctx)
}

// FindLocation looks a catalog location up by name.
func (s *Service) FindLocation(ctx context.Context, name string) (Location, error) {
	locs, err := s.catalog.ListAll(ctx)
	if err != nil {
		return Location{}, fmt.Errorf("list locations: %w", err)
	}
	for _, l := range locs {
		if l.Name == name {
			return l, nil
		}
	}
	return Location{}, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
}

// Current returns the latest reading for a single location.
func (s *Service) Current(ctx context.Context, loc Location) (Snapshot, error) {
	return s.gateway.Snapshot(ctx, loc)
}

// Series fetches the hourly payload for the range and assembles it into rows.
func (s *Service) Series(ctx context.Context, loc Location, parameters []string, start, end time.Time) ([]TimeSeriesRow, error) {
	s.logger.Debug("series requested",
		zap.String("location", loc.Name),
		zap.Strings("parameters", parameters),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	params := NormalizeParameters(parameters)
	payload, err := s.gateway.Series(ctx, loc, params, start, end)
	if err != nil {
		return nil, err
	}
	return Assemble(payload, params)
}
