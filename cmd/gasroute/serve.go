package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/rubiojr/gasroute/internal/server"
	"github.com/rubiojr/gasroute/pkg/api"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "Address to listen on",
			EnvVars: []string{"GASROUTE_ADDR"},
			Value:   ":8080",
		},
		&cli.StringFlag{
			Name:     "api-key",
			Usage:    "Google Maps Directions API key",
			EnvVars:  []string{"GOOGLE_MAPS_API_KEY"},
			Required: true,
		},
		&cli.IntFlag{
			Name:  "rate-limit",
			Usage: "Requests per minute allowed per client IP (0 disables)",
			Value: server.DefaultRateLimit,
		},
		&cli.StringSliceFlag{
			Name:    "cors-origin",
			Usage:   "Allowed CORS origin, can be repeated",
			EnvVars: []string{"GASROUTE_CORS_ORIGINS"},
		},
	}
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the trip planner HTTP API",
		Flags:  append(flags, plannerFlags()...),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := httplog.NewLogger("gasroute", httplog.Options{
		JSON:            false,
		LogLevel:        level,
		Concise:         true,
		QuietDownPeriod: 10 * time.Second,
	})

	storage, err := openStorage(c, logger.Logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	planner, err := newPlanner(c, logger.Logger)
	if err != nil {
		return err
	}

	srv, err := server.New(storage, api.NewDirectionsAPI(c.String("api-key")), planner, logger, server.Options{
		RateLimit:      c.Int("rate-limit"),
		AllowedOrigins: c.StringSlice("cors-origin"),
	})
	if err != nil {
		return fmt.Errorf("error creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.String("addr"),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
