package fuelroute

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func station(name string, price float64, lat, lng float64) Station {
	return Station{Name: name, Address: name + " address", Price: price, Latitude: ptr(lat), Longitude: ptr(lng)}
}

func TestFindBestStation_EmptyCatalog(t *testing.T) {
	_, ok := FindBestStation(40.0, -100.0, nil)
	assert.False(t, ok)
}

func TestFindBestStation_SkipsStationsWithoutCoordinates(t *testing.T) {
	catalog := []Station{
		{Name: "no coords", Price: 1.00},
		{Name: "only lat", Price: 1.00, Latitude: ptr(40.0)},
		{Name: "only lng", Price: 1.00, Longitude: ptr(-100.0)},
	}
	_, ok := FindBestStation(40.0, -100.0, catalog)
	assert.False(t, ok)

	catalog = append(catalog, station("far but geocoded", 4.00, 45.0, -90.0))
	got, ok := FindBestStation(40.0, -100.0, catalog)
	require.True(t, ok)
	assert.Equal(t, "far but geocoded", got.Name)
}

func TestFindBestStation_SkipsNonFiniteCoordinates(t *testing.T) {
	catalog := []Station{
		station("nan latitude", 1.00, math.NaN(), -100.0),
		station("infinite longitude", 1.00, 40.0, math.Inf(1)),
		station("right here", 3.00, 40.0, -100.0),
	}
	got, ok := FindBestStation(40.0, -100.0, catalog)
	require.True(t, ok)
	assert.Equal(t, "right here", got.Name)

	assert.Equal(t, 1, NewLocator(catalog).Len())
}

func TestFindBestStation_CloserWinsOverCheaper(t *testing.T) {
	catalog := []Station{
		station("cheap far", 2.50, 41.0, -100.0),
		station("pricey near", 4.10, 40.1, -100.0),
	}
	got, ok := FindBestStation(40.0, -100.0, catalog)
	require.True(t, ok)
	assert.Equal(t, "pricey near", got.Name)
}

func TestFindBestStation_PriceBreaksDistanceTies(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		catalog  []Station
	}{
		{
			name: "same position",
			lat:  35.0,
			lng:  -96.0,
			catalog: []Station{
				station("expensive", 3.99, 35.0, -97.0),
				station("cheap", 3.49, 35.0, -97.0),
				station("middle", 3.79, 35.0, -97.0),
			},
		},
		{
			name: "mirrored around query point",
			lat:  0.0,
			lng:  0.0,
			catalog: []Station{
				station("expensive", 3.99, 0.0, 1.0),
				station("cheap", 3.49, 0.0, -1.0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindBestStation(tt.lat, tt.lng, tt.catalog)
			require.True(t, ok)
			assert.Equal(t, "cheap", got.Name)
			assert.Equal(t, 3.49, got.Price)
		})
	}
}

func TestFindBestStation_ReturnsSnapshot(t *testing.T) {
	catalog := []Station{station("Pilot", 3.25, 36.1, -86.7)}
	got, ok := FindBestStation(36.0, -86.0, catalog)
	require.True(t, ok)

	*catalog[0].Latitude = 10
	catalog[0].Name = "changed"
	catalog[0].Price = 9

	assert.Equal(t, StationSnapshot{
		Name:      "Pilot",
		Address:   "Pilot address",
		Price:     3.25,
		Latitude:  36.1,
		Longitude: -86.7,
	}, got)
}

func TestLocator_IgnoresLaterCatalogChanges(t *testing.T) {
	catalog := []Station{station("A", 3.00, 36.0, -86.0)}
	loc := NewLocator(catalog)
	catalog[0].Name = "B"

	assert.Equal(t, 1, loc.Len())
	got, ok := loc.FindBestStation(36.0, -86.0)
	require.True(t, ok)
	assert.Equal(t, "A", got.Name)
}
