package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func tripsCommand() *cli.Command {
	return &cli.Command{
		Name:  "trips",
		Usage: "Show recently planned trips",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of trips to show",
				Value:   20,
			},
		},
		Action: tripsAction,
	}
}

func tripsAction(c *cli.Context) error {
	storage, err := openStorage(c, newLogger(c))
	if err != nil {
		return err
	}
	defer storage.Close()

	logs, err := storage.GetTripLogs(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Println("No trips planned yet.")
		return nil
	}

	for _, l := range logs {
		fmt.Printf("%s  %s -> %s\n", l.CreatedAt.Local().Format("2006-01-02 15:04"), l.Origin, l.Destination)
		fmt.Printf("   %.1f miles, %d stops, $%.2f (%s)\n", l.TotalDistance, l.Stops, l.TotalCost, l.ID)
	}
	return nil
}
