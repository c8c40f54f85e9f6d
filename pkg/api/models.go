package api

import (
	"errors"

	"github.com/rubiojr/gasroute/internal/fuelroute"
)

var ErrNoRoute = errors.New("directions response has no route")

// DirectionsResponse represents the response structure from the Directions API.
type DirectionsResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Routes       []Route `json:"routes"`
}

type Route struct {
	Summary string `json:"summary"`
	Legs    []Leg  `json:"legs"`
}

type Leg struct {
	Distance      TextValue `json:"distance"`
	Duration      TextValue `json:"duration"`
	StartAddress  string    `json:"start_address"`
	EndAddress    string    `json:"end_address"`
	StartLocation LatLng    `json:"start_location"`
	EndLocation   LatLng    `json:"end_location"`
	Steps         []Step    `json:"steps"`
}

type Step struct {
	Distance         TextValue `json:"distance"`
	Duration         TextValue `json:"duration"`
	StartLocation    LatLng    `json:"start_location"`
	EndLocation      LatLng    `json:"end_location"`
	HTMLInstructions string    `json:"html_instructions,omitempty"`
	TravelMode       string    `json:"travel_mode,omitempty"`
}

// TextValue is a display string plus its numeric value (meters or seconds).
type TextValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Segments flattens the steps of every leg of the first route into route
// segments, converting step distances from meters to miles.
func (r *DirectionsResponse) Segments() ([]fuelroute.Segment, error) {
	if len(r.Routes) == 0 {
		return nil, ErrNoRoute
	}

	var segments []fuelroute.Segment
	for _, leg := range r.Routes[0].Legs {
		for _, step := range leg.Steps {
			segments = append(segments, fuelroute.Segment{
				Distance:     fuelroute.MetersToMiles(step.Distance.Value),
				EndLatitude:  step.EndLocation.Lat,
				EndLongitude: step.EndLocation.Lng,
			})
		}
	}
	if len(segments) == 0 {
		return nil, ErrNoRoute
	}
	return segments, nil
}
