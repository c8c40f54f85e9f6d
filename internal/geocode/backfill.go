package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rubiojr/gasroute/internal/fuelroute"
	"github.com/rubiojr/gasroute/internal/stationdb"
)

const (
	DefaultBatchSize = 50
	DefaultPause     = time.Second
)

// Store is the part of the station catalog the backfill reads and writes.
type Store interface {
	StationsMissingCoordinates(ctx context.Context) ([]fuelroute.Station, error)
	UpdateCoordinates(ctx context.Context, updates []stationdb.CoordinateUpdate) error
}

type BackfillOptions struct {
	// BatchSize is how many coordinates are written per transaction.
	BatchSize int
	// Pause is the wait between geocoding requests. Public Nominatim allows one per second.
	Pause  time.Duration
	Logger *slog.Logger
}

type BackfillResult struct {
	Updated int
	Failed  int
	Total   int
}

// Query builds the geocoding query for a station.
func Query(st *fuelroute.Station) string {
	return fmt.Sprintf("%s,%s, %s, %s", st.Name, st.Address, st.City, st.State)
}

// Backfill geocodes every station without coordinates. A station that cannot be
// geocoded or saved is counted as failed and the run carries on; only context
// cancellation and catalog read errors stop it.
func Backfill(ctx context.Context, store Store, geocoder Geocoder, opts BackfillOptions) (BackfillResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var result BackfillResult
	stations, err := store.StationsMissingCoordinates(ctx)
	if err != nil {
		return result, fmt.Errorf("error listing stations: %w", err)
	}
	result.Total = len(stations)

	batch := make([]stationdb.CoordinateUpdate, 0, opts.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := store.UpdateCoordinates(ctx, batch); err != nil {
			logger.Error("Failed to save coordinates batch", "size", len(batch), "error", err)
			result.Failed += len(batch)
		} else {
			result.Updated += len(batch)
			logger.Info("Committed coordinates batch", "size", len(batch))
		}
		batch = batch[:0]
	}

	for i := range stations {
		st := &stations[i]
		if i > 0 && opts.Pause > 0 {
			select {
			case <-ctx.Done():
				// Keep what was geocoded before the interrupt.
				flush(context.WithoutCancel(ctx))
				return result, ctx.Err()
			case <-time.After(opts.Pause):
			}
		}

		lat, lng, err := geocoder.Geocode(ctx, Query(st))
		if err != nil {
			if ctx.Err() != nil {
				flush(context.WithoutCancel(ctx))
				return result, ctx.Err()
			}
			logger.Warn("Geocoding failed", "station", st.Name, "city", st.City, "state", st.State, "error", err)
			result.Failed++
			continue
		}

		logger.Debug("Geocoded station", "station", st.Name, "lat", lat, "lng", lng)
		batch = append(batch, stationdb.CoordinateUpdate{ID: st.ID, Latitude: lat, Longitude: lng})
		if len(batch) >= opts.BatchSize {
			flush(ctx)
		}
	}
	flush(ctx)

	logger.Info("Coordinate update completed", "updated", result.Updated, "failed", result.Failed, "total", result.Total)
	return result, nil
}
