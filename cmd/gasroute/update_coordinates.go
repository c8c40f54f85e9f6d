package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/rubiojr/gasroute/internal/geocode"
	"github.com/urfave/cli/v2"
)

func updateCoordinatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "update-coordinates",
		Usage: "Geocode stations that have no coordinates yet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nominatim-server",
				Usage:   "Nominatim server URL",
				EnvVars: []string{"NOMINATIM_SERVER"},
				Value:   geocode.DefaultServer,
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Coordinates saved per transaction",
				Value: geocode.DefaultBatchSize,
			},
			&cli.DurationFlag{
				Name:  "pause",
				Usage: "Wait between geocoding requests",
				Value: geocode.DefaultPause,
			},
		},
		Action: updateCoordinatesAction,
	}
}

func updateCoordinatesAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	logger := newLogger(c)
	storage, err := openStorage(c, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	result, err := geocode.Backfill(ctx, storage, geocode.NewNominatim(c.String("nominatim-server")), geocode.BackfillOptions{
		BatchSize: c.Int("batch-size"),
		Pause:     c.Duration("pause"),
		Logger:    logger,
	})
	fmt.Printf("Geocoded %d of %d stations (%d failed)\n", result.Updated, result.Total, result.Failed)
	return err
}
