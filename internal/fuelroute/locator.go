// Package fuelroute places refueling stops along a driving route and prices the trip.
//
// The package is pure computation: routes and station catalogs are passed in by the
// caller, nothing is read from storage or the network.
package fuelroute

import (
	"math"

	"github.com/tkrajina/gpxgo/gpx"
)

// Station is a catalog entry. Latitude and Longitude are nil until the station
// has been geocoded.
type Station struct {
	ID        int64    `json:"id"`
	OPISID    string   `json:"opis_id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	RackID    string   `json:"rack_id"`
	Price     float64  `json:"retail_price"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Coordinates returns the station position and whether both coordinates are set.
func (s *Station) Coordinates() (lat, lng float64, ok bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return 0, 0, false
	}
	return *s.Latitude, *s.Longitude, true
}

// StationSnapshot is the copy of a station taken when it is selected for a stop.
type StationSnapshot struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Price     float64 `json:"price"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// StationFinder returns the best station for a coordinate, or false when none is eligible.
type StationFinder interface {
	FindBestStation(lat, lng float64) (StationSnapshot, bool)
}

// Locator answers station lookups against a fixed catalog snapshot.
type Locator struct {
	eligible []StationSnapshot
}

// NewLocator keeps the geocoded stations of catalog. Later changes to catalog are
// not seen by the locator.
func NewLocator(catalog []Station) *Locator {
	eligible := make([]StationSnapshot, 0, len(catalog))
	for i := range catalog {
		if snap, ok := snapshot(&catalog[i]); ok {
			eligible = append(eligible, snap)
		}
	}
	return &Locator{eligible: eligible}
}

// Len reports how many stations take part in lookups.
func (l *Locator) Len() int {
	return len(l.eligible)
}

// FindBestStation implements StationFinder.
func (l *Locator) FindBestStation(lat, lng float64) (StationSnapshot, bool) {
	return closest(lat, lng, l.eligible)
}

// FindBestStation picks the geocoded station nearest to (lat, lng). Price breaks
// ties between stations at exactly the same distance. The bool is false when the
// catalog has no geocoded station.
func FindBestStation(lat, lng float64, catalog []Station) (StationSnapshot, bool) {
	return NewLocator(catalog).FindBestStation(lat, lng)
}

func closest(lat, lng float64, candidates []StationSnapshot) (StationSnapshot, bool) {
	var (
		best     StationSnapshot
		bestDist float64
		found    bool
	)
	for _, c := range candidates {
		d := gpx.Distance2D(lat, lng, c.Latitude, c.Longitude, true)
		if !found || d < bestDist || (d == bestDist && c.Price < best.Price) {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

func snapshot(s *Station) (StationSnapshot, bool) {
	lat, lng, ok := s.Coordinates()
	if !ok || !finite(lat) || !finite(lng) {
		return StationSnapshot{}, false
	}
	return StationSnapshot{
		Name:      s.Name,
		Address:   s.Address,
		Price:     s.Price,
		Latitude:  lat,
		Longitude: lng,
	}, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
