package weather

import (
	"math"
	"time"
)

// CacheTTL is how long a raw provider response stays fresh.
const CacheTTL = 900 * time.Second

// Location represents a logical place for which we track weather.
type Location struct {
	ID        string  `json:"id"`
	Name      string  `json:"name" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Key returns a canonical string key for indexing this location in results.
func (l Location) Key() string {
	return l.Name
}

// CacheEntry is a raw provider response addressed by its query signature.
type CacheEntry struct {
	Signature Signature
	Payload   []byte
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry is still valid at now.
func (e CacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Variable is one named hourly column.
type Variable struct {
	Name   string
	Values []float64
}

// HourlyPayload is the decoded columnar hourly block of a provider response.
// Every variable holds exactly Len() values; missing samples are NaN.
type HourlyPayload struct {
	StartTime time.Time
	EndTime   time.Time
	Interval  time.Duration
	Variables []Variable
}

// Len returns the number of samples on the time axis.
func (p HourlyPayload) Len() int {
	if p.Interval <= 0 || !p.EndTime.After(p.StartTime) {
		return 0
	}
	span := p.EndTime.Sub(p.StartTime)
	return int(math.Ceil(float64(span) / float64(p.Interval)))
}

// Variable looks up a column by name.
func (p HourlyPayload) Variable(name string) ([]float64, bool) {
	for _, v := range p.Variables {
		if v.Name == name {
			return v.Values, true
		}
	}
	return nil, false
}

// Timestamp returns the time of sample i.
func (p HourlyPayload) Timestamp(i int) time.Time {
	return p.StartTime.Add(time.Duration(i) * p.Interval)
}

// Snapshot is the most recent single-point reading for a location.
type Snapshot struct {
	Location    Location  `json:"location"`
	Timestamp   time.Time `json:"timestamp"` // always UTC
	Temperature float64   `json:"temperatureC"`
	WindSpeed   float64   `json:"windSpeedKmh"`
	Pressure    float64   `json:"pressureHpa"`
}

// FetchResult is the per-location outcome of a dashboard fetch.
type FetchResult struct {
	Location Location
	Snapshot *Snapshot
	Err      error
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.Snapshot != nil
}

// TimeSeriesRow is one timestamp of an assembled series.
type TimeSeriesRow struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}
