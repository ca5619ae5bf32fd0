package weather

import (
	"context"
	"time"
)

// Gateway abstracts the weather provider (Open-Meteo) behind the cache.
type Gateway interface {
	Snapshot(ctx context.Context, loc Location) (Snapshot, error)
	Series(ctx context.Context, loc Location, parameters []string, start, end time.Time) (HourlyPayload, error)
}

// FetchFunc fetches the raw provider response for a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cache is the contract the cache store must satisfy.
type Cache interface {
	GetOrFetch(ctx context.Context, sig Signature, fetch FetchFunc) ([]byte, error)
}

// Catalog is the source of known locations.
type Catalog interface {
	ListAll(ctx context.Context) ([]Location, error)
}
