// Package catalog provides the known locations served by the dashboard and
// refreshed by the cache warmer.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = validator.New()

// Resolver turns a "City,Country" name into coordinates.
type Resolver interface {
	Resolve(city, country string) (lat, lon float64, err error)
}

// GoogleResolver resolves names with the Google geocoding API.
type GoogleResolver struct {
	APIKey string
}

func (r GoogleResolver) Resolve(city, country string) (float64, float64, error) {
	if r.APIKey == "" {
		return 0, 0, fmt.Errorf("geocoding %q requires GEOCODER_API_KEY", city)
	}
	geocoder.ApiKey = r.APIKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %s,%s: %w", city, country, err)
	}
	return loc.Latitude, loc.Longitude, nil
}

// Static is an immutable, in-memory catalog.
type Static struct {
	locations []weather.Location
}

// NewStatic validates locs and builds a catalog. Names must be unique.
func NewStatic(locs []weather.Location) (*Static, error) {
	seen := make(map[string]struct{}, len(locs))
	out := make([]weather.Location, 0, len(locs))
	for _, l := range locs {
		if err := validate.Struct(l); err != nil {
			return nil, fmt.Errorf("%w: location %q: %v", weather.ErrValidation, l.Name, err)
		}
		if _, dup := seen[l.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate location name %q", weather.ErrValidation, l.Name)
		}
		seen[l.Name] = struct{}{}
		if l.ID == "" {
			l.ID = LocationID(l.Name)
		}
		out = append(out, l)
	}
	return &Static{locations: out}, nil
}

// ListAll returns a copy of the catalog.
func (c *Static) ListAll(ctx context.Context) ([]weather.Location, error) {
	return append([]weather.Location(nil), c.locations...), nil
}

// LocationID derives a stable ID from a location name.
func LocationID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("weather-dashboard/location/"+name)).String()
}

// Parse reads a ';'-separated location list. Entries are either
// "Name=lat,lon" or "City,Country"; the latter is geocoded with r.
func Parse(list string, r Resolver) ([]weather.Location, error) {
	var locs []weather.Location
	for _, raw := range strings.Split(list, ";") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		if name, coords, ok := strings.Cut(entry, "="); ok {
			lat, lon, err := parseCoords(coords)
			if err != nil {
				return nil, fmt.Errorf("%w: location %q: %v", weather.ErrValidation, entry, err)
			}
			locs = append(locs, weather.Location{Name: strings.TrimSpace(name), Latitude: lat, Longitude: lon})
			continue
		}

		if r == nil {
			return nil, fmt.Errorf("%w: location %q has no coordinates and no resolver is configured", weather.ErrValidation, entry)
		}
		city, country, _ := strings.Cut(entry, ",")
		city, country = strings.TrimSpace(city), strings.TrimSpace(country)
		lat, lon, err := r.Resolve(city, country)
		if err != nil {
			return nil, err
		}
		locs = append(locs, weather.Location{Name: city, Latitude: lat, Longitude: lon})
	}
	return locs, nil
}

func parseCoords(s string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	return lat, lon, nil
}
