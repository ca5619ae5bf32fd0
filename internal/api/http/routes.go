package httpapi

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = validator.New()

// now is overridden in tests.
var now = time.Now

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		locs, err := service.Locations(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list locations")
		}
		return c.JSON(fiber.Map{"locations": locs})
	})

	v1.Get("/parameters", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"parameters": weather.HourlyParameters})
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		q, err := parseCoordinateQuery(c)
		if err != nil {
			return toHTTPError(err)
		}

		snapshot, err := service.Current(c.UserContext(), q.toLocation())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(snapshotView(snapshot))
	})

	v1.Get("/weather/dashboard", func(c *fiber.Ctx) error {
		results, err := service.Dashboard(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list locations")
		}

		names := make([]string, 0, len(results))
		for name := range results {
			names = append(names, name)
		}
		sort.Strings(names)

		entries := make([]dashboardEntry, 0, len(results))
		for _, name := range names {
			r := results[name]
			entry := dashboardEntry{Name: name, Location: r.Location, OK: r.OK()}
			if r.OK() {
				view := snapshotView(*r.Snapshot)
				entry.Weather = &view
			} else {
				entry.Error = r.Err.Error()
			}
			entries = append(entries, entry)
		}
		return c.JSON(fiber.Map{"locations": entries})
	})

	v1.Get("/weather/series", func(c *fiber.Ctx) error {
		var req seriesQuery
		if err := req.bind(c); err != nil {
			return toHTTPError(err)
		}

		loc, err := req.resolve(c, service)
		if err != nil {
			return toHTTPError(err)
		}

		rows, err := service.Series(c.UserContext(), loc, req.Parameters, req.Start, req.End)
		if err != nil {
			return toHTTPError(err)
		}

		return c.JSON(fiber.Map{
			"location":   loc,
			"start_date": req.Start.Format(weather.DateLayout),
			"end_date":   req.End.Format(weather.DateLayout),
			"parameters": req.Parameters,
			"rows":       rowViews(rows),
		})
	})
}

// toHTTPError maps core error kinds onto HTTP statuses.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, weather.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrUnknownLocation):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrProvider):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrDataMisalignment):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, weather.ErrDecode):
		return fiber.NewError(fiber.StatusBadGateway, "weather provider returned malformed data")
	case errors.Is(err, weather.ErrRetryExhausted),
		errors.Is(err, weather.ErrCircuitOpen),
		errors.Is(err, weather.ErrNetwork):
		return fiber.NewError(fiber.StatusServiceUnavailable, "weather provider unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}

// coordinateQuery holds query parameters identifying a point.
type coordinateQuery struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

func (q coordinateQuery) toLocation() weather.Location {
	return weather.Location{
		Name:      strconv.FormatFloat(q.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(q.Longitude, 'f', -1, 64),
		Latitude:  q.Latitude,
		Longitude: q.Longitude,
	}
}

func parseCoordinateQuery(c *fiber.Ctx) (coordinateQuery, error) {
	var q coordinateQuery

	lat, err := parseCoordinate(c.Query("latitude"))
	if err != nil {
		return q, validationError("latitude and longitude must be valid numbers")
	}
	lon, err := parseCoordinate(c.Query("longitude"))
	if err != nil {
		return q, validationError("latitude and longitude must be valid numbers")
	}
	q.Latitude, q.Longitude = lat, lon

	if err := validate.Struct(q); err != nil {
		return q, validationError(err.Error())
	}
	return q, nil
}

// parseCoordinate accepts both '.' and ',' as the decimal separator.
func parseCoordinate(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, errors.New("empty coordinate")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("coordinate is not finite")
	}
	return v, nil
}

// seriesQuery holds query parameters for the series endpoint.
type seriesQuery struct {
	Location   string
	Point      *coordinateQuery
	Parameters []string  `validate:"min=1,dive,required"`
	Start      time.Time `validate:"required"`
	End        time.Time `validate:"required,gtfield=Start"`
}

func (s *seriesQuery) bind(c *fiber.Ctx) error {
	s.Location = strings.TrimSpace(c.Query("location"))
	if s.Location == "" {
		q, err := parseCoordinateQuery(c)
		if err != nil {
			return validationError("either location or latitude and longitude are required")
		}
		s.Point = &q
	}

	s.Parameters = weather.NormalizeParameters(strings.Split(c.Query("parameters"), ","))

	startStr := c.Query("start_date")
	endStr := c.Query("end_date")
	if startStr == "" || endStr == "" {
		return validationError("start_date and end_date query parameters are required")
	}

	start, err := time.Parse(weather.DateLayout, startStr)
	if err != nil {
		return validationError("invalid start_date; use YYYY-MM-DD")
	}
	end, err := time.Parse(weather.DateLayout, endStr)
	if err != nil {
		return validationError("invalid end_date; use YYYY-MM-DD")
	}
	s.Start, s.End = start, end

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "End" {
			return validationError("end_date must be after start_date")
		}
		if errors.As(err, &verrs) && verrs[0].Field() == "Parameters" {
			return validationError("at least one parameter is required")
		}
		return validationError(err.Error())
	}

	y, m, d := now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if s.Start.After(today) || s.End.After(today) {
		return validationError("dates must not be in the future")
	}
	return nil
}

func (s *seriesQuery) resolve(c *fiber.Ctx, service *weather.Service) (weather.Location, error) {
	if s.Point != nil {
		return s.Point.toLocation(), nil
	}
	return service.FindLocation(c.UserContext(), s.Location)
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", weather.ErrValidation, msg)
}

type snapshotResponse struct {
	Location    weather.Location `json:"location"`
	Timestamp   time.Time        `json:"timestamp"`
	Temperature *float64         `json:"temperatureC"`
	WindSpeed   *float64         `json:"windSpeedKmh"`
	Pressure    *float64         `json:"pressureHpa"`
}

type dashboardEntry struct {
	Name     string            `json:"name"`
	Location weather.Location  `json:"location"`
	OK       bool              `json:"ok"`
	Weather  *snapshotResponse `json:"weather,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type rowResponse struct {
	Timestamp time.Time           `json:"timestamp"`
	Values    map[string]*float64 `json:"values"`
}

func snapshotView(s weather.Snapshot) snapshotResponse {
	return snapshotResponse{
		Location:    s.Location,
		Timestamp:   s.Timestamp,
		Temperature: finite(s.Temperature),
		WindSpeed:   finite(s.WindSpeed),
		Pressure:    finite(s.Pressure),
	}
}

func rowViews(rows []weather.TimeSeriesRow) []rowResponse {
	out := make([]rowResponse, len(rows))
	for i, r := range rows {
		values := make(map[string]*float64, len(r.Values))
		for k, v := range r.Values {
			values[k] = finite(v)
		}
		out[i] = rowResponse{Timestamp: r.Timestamp, Values: values}
	}
	return out
}

// finite maps NaN (a missing provider sample) to JSON null.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
