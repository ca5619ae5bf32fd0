package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

var (
	// ErrNotFound is returned when no fresh entry exists for a signature.
	ErrNotFound = errors.New("no cache entry for signature")
)

// Observer receives cache activity, e.g. for metrics.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheCollapsed()
}

// Persister is the durable backing of the cache.
type Persister interface {
	Save(ctx context.Context, e weather.CacheEntry) error
	LoadFresh(ctx context.Context, now time.Time) ([]weather.CacheEntry, error)
}

// CacheStore is a concurrency-safe TTL cache of raw provider responses.
// Concurrent misses on one signature share a single fetch.
type CacheStore struct {
	mu sync.RWMutex

	// key: query signature
	entries map[weather.Signature]weather.CacheEntry

	ttl       time.Duration
	flights   singleflight.Group
	now       func() time.Time
	persister Persister
	observer  Observer
	logger    *zap.Logger
}

// Option configures a CacheStore.
type Option func(*CacheStore)

// WithClock overrides the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *CacheStore) {
		s.now = now
	}
}

// WithPersister writes every stored entry through to p.
func WithPersister(p Persister) Option {
	return func(s *CacheStore) {
		s.persister = p
	}
}

// WithObserver reports hits and misses to o.
func WithObserver(o Observer) Option {
	return func(s *CacheStore) {
		s.observer = o
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *CacheStore) {
		s.logger = l
	}
}

// NewCacheStore creates a CacheStore whose entries live for ttl.
func NewCacheStore(ttl time.Duration, opts ...Option) *CacheStore {
	s := &CacheStore{
		entries: make(map[weather.Signature]weather.CacheEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("cache")
	return s
}

// GetOrFetch returns the fresh payload stored under sig, or runs fetch, stores
// its result and returns it. Callers arriving while a fetch for sig is in
// flight wait for that fetch instead of starting another one.
func (s *CacheStore) GetOrFetch(ctx context.Context, sig weather.Signature, fetch weather.FetchFunc) ([]byte, error) {
	if e, ok := s.lookup(sig); ok {
		s.hit()
		return e.Payload, nil
	}

	// The shared fetch must outlive any single waiter's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(string(sig), func() (any, error) {
		if e, ok := s.lookup(sig); ok {
			s.hit()
			return e.Payload, nil
		}
		s.miss()

		payload, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}
		s.store(flightCtx, sig, payload)
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared && s.observer != nil {
			s.observer.CacheCollapsed()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Lookup returns the fresh entry for sig.
func (s *CacheStore) Lookup(sig weather.Signature) (weather.CacheEntry, error) {
	e, ok := s.lookup(sig)
	if !ok {
		return weather.CacheEntry{}, ErrNotFound
	}
	return e, nil
}

// Len returns the number of entries, stale ones included.
func (s *CacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Restore loads the persisted entries that are still fresh.
func (s *CacheStore) Restore(ctx context.Context) (int, error) {
	if s.persister == nil {
		return 0, nil
	}
	entries, err := s.persister.LoadFresh(ctx, s.now())
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.Signature] = e
	}
	return len(entries), nil
}

func (s *CacheStore) lookup(sig weather.Signature) (weather.CacheEntry, bool) {
	s.mu.RLock()
	e, ok := s.entries[sig]
	s.mu.RUnlock()
	if !ok || !e.Fresh(s.now()) {
		return weather.CacheEntry{}, false
	}
	return e, true
}

func (s *CacheStore) store(ctx context.Context, sig weather.Signature, payload []byte) {
	fetchedAt := s.now()
	e := weather.CacheEntry{
		Signature: sig,
		Payload:   payload,
		FetchedAt: fetchedAt,
		ExpiresAt: fetchedAt.Add(s.ttl),
	}

	// Entries are replaced whole; readers see the old or the new value.
	s.mu.Lock()
	s.entries[sig] = e
	s.mu.Unlock()

	if s.persister == nil {
		return
	}
	if err := s.persister.Save(ctx, e); err != nil {
		s.logger.Warn("persist cache entry failed",
			zap.String("signature", string(sig)),
			zap.Error(err),
		)
	}
}

func (s *CacheStore) hit() {
	if s.observer != nil {
		s.observer.CacheHit()
	}
}

func (s *CacheStore) miss() {
	if s.observer != nil {
		s.observer.CacheMiss()
	}
}
