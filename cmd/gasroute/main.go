package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/rubiojr/gasroute/internal/fuelroute"
	"github.com/rubiojr/gasroute/internal/stationdb"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gasroute",
		Usage: "Manage the fuel station catalog and plan fuel stops along driving routes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Database file",
				EnvVars: []string{"GASROUTE_DB"},
				Value:   "fuel_stations.db",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log debug output to stderr",
			},
		},
		Before: loadDotenv,
		Commands: []*cli.Command{
			importCommand(),
			updateCoordinatesCommand(),
			listStationsCommand(),
			nearestStationCommand(),
			planCommand(),
			tripsCommand(),
			serveCommand(),
		},
	}
}

// loadDotenv reads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func loadDotenv(c *cli.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

func newLogger(c *cli.Context) *slog.Logger {
	if c.Bool("verbose") {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}

func openStorage(c *cli.Context, logger *slog.Logger) (*stationdb.Storage, error) {
	storage, err := stationdb.NewStorage(c.Context, c.String("db"), logger)
	if err != nil {
		return nil, fmt.Errorf("error initializing storage: %w", err)
	}
	return storage, nil
}

func plannerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  "threshold",
			Usage: "Miles driven before looking for a fuel stop",
			Value: fuelroute.DefaultThresholdMiles,
		},
		&cli.Float64Flag{
			Name:  "mpg",
			Usage: "Vehicle fuel economy in miles per gallon",
			Value: fuelroute.DefaultMilesPerGallon,
		},
	}
}

func newPlanner(c *cli.Context, logger *slog.Logger) (*fuelroute.Planner, error) {
	return fuelroute.NewPlanner(fuelroute.Config{
		ThresholdMiles: c.Float64("threshold"),
		MilesPerGallon: c.Float64("mpg"),
	}, logger)
}
