package main

import (
	"errors"
	"fmt"

	"github.com/rubiojr/gasroute/internal/fuelroute"
	"github.com/rubiojr/gasroute/internal/geocode"
	"github.com/tkrajina/gpxgo/gpx"
	"github.com/urfave/cli/v2"
)

func nearestStationCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearest-station",
		Usage: "Find the fuel stop the planner would pick near a place",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "location",
				Usage: "Place to search near, geocoded with Nominatim",
			},
			&cli.Float64Flag{
				Name:  "lat",
				Usage: "Latitude of the location",
			},
			&cli.Float64Flag{
				Name:  "lng",
				Usage: "Longitude of the location",
			},
			&cli.StringFlag{
				Name:    "nominatim-server",
				Usage:   "Nominatim server URL",
				EnvVars: []string{"NOMINATIM_SERVER"},
				Value:   geocode.DefaultServer,
			},
		},
		Action: nearestStationAction,
	}
}

func nearestStationAction(c *cli.Context) error {
	out := c.App.Writer
	lat, lng := c.Float64("lat"), c.Float64("lng")

	if loc := c.String("location"); loc != "" {
		var err error
		lat, lng, err = geocode.NewNominatim(c.String("nominatim-server")).Geocode(c.Context, loc)
		if err != nil {
			return fmt.Errorf("error locating %q: %w", loc, err)
		}
		fmt.Fprintf(out, "Location found: %.5f, %.5f\n", lat, lng)
	} else if !c.IsSet("lat") || !c.IsSet("lng") {
		return errors.New("location or latitude and longitude are required")
	}

	storage, err := openStorage(c, newLogger(c))
	if err != nil {
		return err
	}
	defer storage.Close()

	catalog, err := storage.CatalogSnapshot(c.Context)
	if err != nil {
		return err
	}

	station, ok := fuelroute.FindBestStation(lat, lng, catalog)
	if !ok {
		fmt.Fprintln(out, "No geocoded stations in the catalog. Run update-coordinates first.")
		return nil
	}

	miles := fuelroute.MetersToMiles(gpx.Distance2D(lat, lng, station.Latitude, station.Longitude, true))
	fmt.Fprintf(out, "%s (%s)\n", station.Name, station.Address)
	fmt.Fprintf(out, "   Distance: %.1f miles\n", miles)
	fmt.Fprintf(out, "   Price: $%.3f\n", station.Price)
	fmt.Fprintf(out, "   Coordinates: %.5f, %.5f\n", station.Latitude, station.Longitude)
	return nil
}
