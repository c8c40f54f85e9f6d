package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rubiojr/gasroute/internal/fuelroute"
	"github.com/rubiojr/gasroute/internal/routesrc"
	"github.com/rubiojr/gasroute/internal/stationdb"
	"github.com/rubiojr/gasroute/pkg/api"
	"github.com/urfave/cli/v2"
)

func planCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "origin",
			Usage: "Trip origin address",
		},
		&cli.StringFlag{
			Name:  "destination",
			Usage: "Trip destination address",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Google Maps Directions API key",
			EnvVars: []string{"GOOGLE_MAPS_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "gpx",
			Usage: "Plan along the route or track in a GPX file instead of fetching directions",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the plan as JSON",
		},
	}
	return &cli.Command{
		Name:   "plan",
		Usage:  "Plan fuel stops and cost for a trip",
		Flags:  append(flags, plannerFlags()...),
		Action: planAction,
	}
}

func planAction(c *cli.Context) error {
	logger := newLogger(c)
	planner, err := newPlanner(c, logger)
	if err != nil {
		return err
	}

	origin, destination := c.String("origin"), c.String("destination")
	var route []fuelroute.Segment
	if path := c.String("gpx"); path != "" {
		route, err = routeFromGPX(path)
		origin, destination = filepath.Base(path), filepath.Base(path)
	} else {
		route, err = routeFromDirections(c.Context, c.String("api-key"), origin, destination)
	}
	if err != nil {
		return err
	}

	storage, err := openStorage(c, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	catalog, err := storage.CatalogSnapshot(c.Context)
	if err != nil {
		return err
	}

	trip, err := planner.PlanTrip(route, catalog)
	if err != nil {
		return err
	}

	if _, err := storage.LogTrip(c.Context, stationdb.TripLog{
		Origin:        origin,
		Destination:   destination,
		TotalDistance: trip.TotalDistanceMiles,
		TotalCost:     trip.TotalCost,
		Stops:         len(trip.Stops),
	}); err != nil {
		logger.Error("Failed to log trip", "error", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trip)
	}
	printTrip(trip)
	return nil
}

func routeFromGPX(path string) ([]fuelroute.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()
	return routesrc.FromGPX(f)
}

func routeFromDirections(ctx context.Context, apiKey, origin, destination string) ([]fuelroute.Segment, error) {
	if origin == "" || destination == "" {
		return nil, errors.New("origin and destination, or a gpx file, are required")
	}
	if apiKey == "" {
		return nil, errors.New("a Google Maps API key is required (--api-key or GOOGLE_MAPS_API_KEY)")
	}

	resp, err := api.NewDirectionsAPI(apiKey).FetchRoute(ctx, origin, destination)
	if err != nil {
		return nil, err
	}
	return resp.Segments()
}

func printTrip(trip *fuelroute.Trip) {
	if len(trip.Stops) == 0 {
		fmt.Println("No fuel stops needed.")
	}
	for i, stop := range trip.Stops {
		fmt.Printf("%d. %s (%s)\n", i+1, stop.Station.Name, stop.Station.Address)
		fmt.Printf("   Mile: %.1f\n", stop.CumulativeDistance)
		fmt.Printf("   Price: $%.3f\n", stop.Station.Price)
		fmt.Printf("   Coordinates: %.5f, %.5f\n\n", stop.Station.Latitude, stop.Station.Longitude)
	}
	fmt.Printf("Total distance: %.1f miles\n", trip.TotalDistanceMiles)
	fmt.Printf("Total fuel cost: $%.2f\n", trip.TotalCost)
}
