package fuelroute

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

const (
	// DefaultThresholdMiles is the distance since the last stop that triggers a
	// station lookup. It assumes a 500 mile range with 50 miles kept in reserve.
	DefaultThresholdMiles = 450.0
	// DefaultMilesPerGallon is the fuel economy used when none is configured.
	DefaultMilesPerGallon = 10.0
)

var (
	// ErrMalformedRoute is returned for routes the planner cannot walk.
	ErrMalformedRoute = errors.New("malformed route")
	// ErrInvalidConfiguration is returned for a non-positive threshold or fuel economy.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Segment is one step of a route. Distance is in miles; the end coordinate is
// where a station lookup happens when the step crosses the threshold.
type Segment struct {
	Distance     float64 `json:"distance"`
	EndLatitude  float64 `json:"end_lat"`
	EndLongitude float64 `json:"end_lng"`
}

// Stop is a planned refueling event.
type Stop struct {
	Station StationSnapshot `json:"station"`
	// CumulativeDistance is the trip odometer, in miles from the start, when the stop is reached.
	CumulativeDistance float64 `json:"distance"`
	// LegDistance is the distance driven since the previous stop (or the start).
	LegDistance float64 `json:"leg_distance"`
}

// Trip is the outcome of planning a whole route.
type Trip struct {
	Stops              []Stop  `json:"optimal_stops"`
	TotalDistanceMiles float64 `json:"total_distance"`
	TotalCost          float64 `json:"total_cost"`
}

// Config holds the planner knobs.
type Config struct {
	ThresholdMiles float64
	MilesPerGallon float64
}

// DefaultConfig returns a 450 mile threshold and 10 mpg.
func DefaultConfig() Config {
	return Config{
		ThresholdMiles: DefaultThresholdMiles,
		MilesPerGallon: DefaultMilesPerGallon,
	}
}

func (c Config) validate() error {
	if !(c.ThresholdMiles > 0) || math.IsInf(c.ThresholdMiles, 0) {
		return fmt.Errorf("%w: threshold must be a positive number of miles, got %v", ErrInvalidConfiguration, c.ThresholdMiles)
	}
	if !(c.MilesPerGallon > 0) || math.IsInf(c.MilesPerGallon, 0) {
		return fmt.Errorf("%w: miles per gallon must be positive, got %v", ErrInvalidConfiguration, c.MilesPerGallon)
	}
	return nil
}

// Planner walks routes and picks refueling stops. It holds no per-route state and
// may be shared between goroutines.
type Planner struct {
	cfg Config
	log *slog.Logger
}

// NewPlanner validates cfg. A nil logger discards output.
func NewPlanner(cfg Config, logger *slog.Logger) (*Planner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{cfg: cfg, log: logger}, nil
}

// Config returns the configuration the planner was built with.
func (p *Planner) Config() Config {
	return p.cfg
}

// PlanStops accumulates segment distances and asks finder for a station every time
// the distance since the last stop reaches the threshold. A lookup that finds
// nothing leaves the accumulator untouched, so the next segment tries again.
func (p *Planner) PlanStops(route []Segment, finder StationFinder) ([]Stop, error) {
	if err := ValidateRoute(route); err != nil {
		return nil, err
	}

	stops := []Stop{}
	var current, odometer float64
	for i, seg := range route {
		current += seg.Distance
		odometer += seg.Distance

		if current < p.cfg.ThresholdMiles {
			continue
		}

		station, ok := finder.FindBestStation(seg.EndLatitude, seg.EndLongitude)
		if !ok {
			p.log.Warn("no station found near route step",
				"step", i, "lat", seg.EndLatitude, "lng", seg.EndLongitude, "since_last_stop", current)
			continue
		}

		p.log.Debug("stop selected", "station", station.Name, "odometer", odometer, "price", station.Price)
		stops = append(stops, Stop{
			Station:            station,
			CumulativeDistance: odometer,
			LegDistance:        current,
		})
		current = 0
	}

	return stops, nil
}

// PlanTrip snapshots catalog once and plans route against it.
func (p *Planner) PlanTrip(route []Segment, catalog []Station) (*Trip, error) {
	locator := NewLocator(catalog)
	if locator.Len() == 0 {
		p.log.Warn("catalog has no geocoded stations", "stations", len(catalog))
	}

	stops, err := p.PlanStops(route, locator)
	if err != nil {
		return nil, fmt.Errorf("error planning stops: %w", err)
	}

	cost, err := ComputeTotalCost(stops, p.cfg.MilesPerGallon)
	if err != nil {
		return nil, fmt.Errorf("error computing trip cost: %w", err)
	}

	return &Trip{
		Stops:              stops,
		TotalDistanceMiles: TotalDistanceMiles(route),
		TotalCost:          cost,
	}, nil
}

// ValidateRoute rejects empty routes, segments whose distance is negative or not
// finite, and segments whose end coordinate is not finite.
func ValidateRoute(route []Segment) error {
	if len(route) == 0 {
		return fmt.Errorf("%w: route has no segments", ErrMalformedRoute)
	}
	for i, seg := range route {
		if math.IsNaN(seg.Distance) || math.IsInf(seg.Distance, 0) || seg.Distance < 0 {
			return fmt.Errorf("%w: segment %d has distance %v", ErrMalformedRoute, i, seg.Distance)
		}
		if !finite(seg.EndLatitude) || !finite(seg.EndLongitude) {
			return fmt.Errorf("%w: segment %d ends at (%v, %v)", ErrMalformedRoute, i, seg.EndLatitude, seg.EndLongitude)
		}
	}
	return nil
}

// TotalDistanceMiles sums every segment of the route.
func TotalDistanceMiles(route []Segment) float64 {
	var total float64
	for _, seg := range route {
		total += seg.Distance
	}
	return total
}
