package weather

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the provider's date format for start_date/end_date.
const DateLayout = "2006-01-02"

// coordPrecision matches the %.6f formatting used on the wire.
const coordPrecision = 1e6

// SnapshotParameters are the hourly fields behind a current-weather snapshot.
var SnapshotParameters = []string{"temperature_2m", "wind_speed_10m", "pressure_msl"}

// Signature addresses a query's response in the cache.
type Signature string

// WeatherQuery is an immutable provider query. Build it with NewQuery.
type WeatherQuery struct {
	latitude   float64
	longitude  float64
	parameters []string
	startDate  string
	endDate    string
}

// QueryOption sets optional query fields.
type QueryOption func(*WeatherQuery)

// WithDateRange restricts the query to [start, end] calendar days (UTC).
func WithDateRange(start, end time.Time) QueryOption {
	return func(q *WeatherQuery) {
		q.startDate = start.UTC().Format(DateLayout)
		q.endDate = end.UTC().Format(DateLayout)
	}
}

// NewQuery normalizes coordinates and parameters into a WeatherQuery.
// Parameters are trimmed, de-duplicated and sorted, so permutations of the
// same set produce equal queries.
func NewQuery(lat, lon float64, parameters []string, opts ...QueryOption) (WeatherQuery, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return WeatherQuery{}, fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrValidation, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return WeatherQuery{}, fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrValidation, lon)
	}

	q := WeatherQuery{
		latitude:   roundCoord(lat),
		longitude:  roundCoord(lon),
		parameters: NormalizeParameters(parameters),
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q, nil
}

func roundCoord(v float64) float64 {
	r := math.Round(v*coordPrecision) / coordPrecision
	if r == 0 {
		// Collapse -0 so it cannot yield a distinct signature.
		return 0
	}
	return r
}

// NormalizeParameters splits, trims, de-duplicates and sorts parameter names.
func NormalizeParameters(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		// The wire format is comma separated, so "a,b" means two names.
		for _, p := range strings.Split(raw, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (q WeatherQuery) Latitude() float64  { return q.latitude }
func (q WeatherQuery) Longitude() float64 { return q.longitude }

// Parameters returns a copy of the normalized parameter list.
func (q WeatherQuery) Parameters() []string {
	return append([]string(nil), q.parameters...)
}

// DateRange returns the formatted range, ok=false when the query has none.
func (q WeatherQuery) DateRange() (start, end string, ok bool) {
	return q.startDate, q.endDate, q.startDate != "" || q.endDate != ""
}

// Canonical is the human readable form the signature is derived from.
func (q WeatherQuery) Canonical() string {
	return fmt.Sprintf("v1|lat=%.6f|lon=%.6f|hourly=%s|start=%s|end=%s",
		q.latitude, q.longitude, strings.Join(q.parameters, ","), q.startDate, q.endDate)
}

// Signature derives the cache key of the query.
func (q WeatherQuery) Signature() Signature {
	h := sha256.Sum256([]byte(q.Canonical()))
	return Signature(hex.EncodeToString(h[:]))
}
