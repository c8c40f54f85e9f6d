// Package geocode resolves station addresses to coordinates and backfills the
// station catalog with them.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/muesli/gominatim"
	"github.com/patrickmn/go-cache"
)

const (
	DefaultServer      = "https://nominatim.openstreetmap.org/"
	cacheExpiration    = 30 * time.Minute
	cacheCleanupPeriod = 90 * time.Minute
)

var ErrNoResults = errors.New("no geocoding results")

// Geocoder turns a free-form address into a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat, lng float64, err error)
}

// Nominatim geocodes through an OpenStreetMap Nominatim server. Results are cached
// by query string.
type Nominatim struct {
	cache *cache.Cache
}

var setServer sync.Once

// NewNominatim configures the gominatim client for server. gominatim keeps the
// server in a package variable, so only the first call's server takes effect.
func NewNominatim(server string) *Nominatim {
	if server == "" {
		server = DefaultServer
	}
	setServer.Do(func() { gominatim.SetServer(server) })
	return &Nominatim{cache: cache.New(cacheExpiration, cacheCleanupPeriod)}
}

func (n *Nominatim) Geocode(ctx context.Context, query string) (lat, lng float64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if cached, ok := n.cache.Get(query); ok {
		return resultToLatLon(cached.(gominatim.SearchResult))
	}

	qry := gominatim.SearchQuery{
		Q: query,
	}
	results, err := qry.Get()
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding error: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	n.cache.Set(query, results[0], cache.DefaultExpiration)

	return resultToLatLon(results[0])
}

func resultToLatLon(result gominatim.SearchResult) (lat, lng float64, err error) {
	lat, err = strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("error parsing latitude: %w", err)
	}

	lng, err = strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("error parsing longitude: %w", err)
	}

	return lat, lng, nil
}
