package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

type fakeResolver map[string][2]float64

func (r fakeResolver) Resolve(city, country string) (float64, float64, error) {
	c, ok := r[city+","+country]
	if !ok {
		return 0, 0, errors.New("not found")
	}
	return c[0], c[1], nil
}

func TestParse(t *testing.T) {
	r := fakeResolver{"Paris,France": {48.85, 2.35}}

	locs, err := Parse(" Berlin=52.52,13.41 ; Paris, France;;", r)
	require.NoError(t, err)
	require.Len(t, locs, 2)

	assert.Equal(t, weather.Location{Name: "Berlin", Latitude: 52.52, Longitude: 13.41}, locs[0])
	assert.Equal(t, weather.Location{Name: "Paris", Latitude: 48.85, Longitude: 2.35}, locs[1])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		list     string
		resolver Resolver
	}{
		{"missing longitude", "Berlin=52.52", nil},
		{"bad latitude", "Berlin=north,13.41", nil},
		{"bad longitude", "Berlin=52.52,east", nil},
		{"name without resolver", "Paris,France", nil},
		{"unknown name", "Atlantis,Ocean", fakeResolver{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.list, tt.resolver)
			assert.Error(t, err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	locs, err := Parse("", nil)
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestNewStatic(t *testing.T) {
	c, err := NewStatic([]weather.Location{
		{Name: "Berlin", Latitude: 52.52, Longitude: 13.41},
		{ID: "custom", Name: "Paris", Latitude: 48.85, Longitude: 2.35},
	})
	require.NoError(t, err)

	locs, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, LocationID("Berlin"), locs[0].ID)
	assert.Equal(t, "custom", locs[1].ID)

	// ListAll hands out copies.
	locs[0].Name = "changed"
	again, _ := c.ListAll(context.Background())
	assert.Equal(t, "Berlin", again[0].Name)
}

func TestNewStaticRejectsInvalidLocations(t *testing.T) {
	tests := []struct {
		name string
		locs []weather.Location
	}{
		{"latitude out of range", []weather.Location{{Name: "X", Latitude: 91}}},
		{"longitude out of range", []weather.Location{{Name: "X", Longitude: -181}}},
		{"missing name", []weather.Location{{Latitude: 1, Longitude: 1}}},
		{"duplicate name", []weather.Location{{Name: "X"}, {Name: "X", Latitude: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStatic(tt.locs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, weather.ErrValidation))
		})
	}
}

func TestLocationIDIsStable(t *testing.T) {
	assert.Equal(t, LocationID("Berlin"), LocationID("Berlin"))
	assert.NotEqual(t, LocationID("Berlin"), LocationID("Paris"))
}

func TestGoogleResolverRequiresKey(t *testing.T) {
	_, _, err := GoogleResolver{}.Resolve("Paris", "France")
	assert.Error(t, err)
}
