package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func listStationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-stations",
		Usage: "List fuel stations in the catalog",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of stations to list (0 lists all)",
				Value:   50,
			},
		},
		Action: listStationsAction,
	}
}

func listStationsAction(c *cli.Context) error {
	storage, err := openStorage(c, newLogger(c))
	if err != nil {
		return err
	}
	defer storage.Close()

	stations, err := storage.ListStations(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	for _, st := range stations {
		fmt.Printf("%d. %s (%s, %s, %s)\n", st.ID, st.Name, st.Address, st.City, st.State)
		fmt.Printf("   Price: $%.3f\n", st.Price)
		if lat, lng, ok := st.Coordinates(); ok {
			fmt.Printf("   Coordinates: %.5f, %.5f\n\n", lat, lng)
		} else {
			fmt.Printf("   Coordinates: not geocoded\n\n")
		}
	}

	total, geocoded, err := storage.Stats(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("%d stations in catalog, %d geocoded\n", total, geocoded)
	return nil
}
