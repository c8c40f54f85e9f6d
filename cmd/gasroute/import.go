package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import fuel stations from an OPIS price CSV file",
		ArgsUsage: "FILE",
		Action:    importAction,
	}
}

func importAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("a CSV file is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	storage, err := openStorage(c, newLogger(c))
	if err != nil {
		return err
	}
	defer storage.Close()

	result, err := storage.ImportCSV(c.Context, f)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %s: %d created, %d already present, %d skipped\n",
		path, result.Created, result.Existing, result.Skipped)
	return nil
}
