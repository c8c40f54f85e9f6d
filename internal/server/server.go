// Package server exposes the station catalog and the trip planner over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/httprate"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rubiojr/gasroute/internal/fuelroute"
	"github.com/rubiojr/gasroute/internal/stationdb"
	"github.com/rubiojr/gasroute/pkg/api"
)

const (
	DefaultRateLimit      = 20 // requests per minute per IP
	DefaultRouteCacheSize = 256
	defaultTripLogLimit   = 20
	healthTimeout         = 2 * time.Second
)

// Store is the station catalog and trip log the server reads and writes.
type Store interface {
	ListStations(ctx context.Context, limit int) ([]fuelroute.Station, error)
	CreateStation(ctx context.Context, st fuelroute.Station) (fuelroute.Station, error)
	CatalogSnapshot(ctx context.Context) ([]fuelroute.Station, error)
	Stats(ctx context.Context) (total, geocoded int, err error)
	LogTrip(ctx context.Context, entry stationdb.TripLog) (stationdb.TripLog, error)
	GetTripLogs(ctx context.Context, limit int) ([]stationdb.TripLog, error)
}

// RouteSource fetches driving directions.
type RouteSource interface {
	FetchRoute(ctx context.Context, origin, destination string) (*api.DirectionsResponse, error)
}

type Options struct {
	// RateLimit is the number of requests per minute allowed per client IP. Zero disables the limit.
	RateLimit      int
	AllowedOrigins []string
	RouteCacheSize int
}

type Server struct {
	store      Store
	routes     RouteSource
	planner    *fuelroute.Planner
	routeCache *lru.Cache[string, *api.DirectionsResponse]
	logger     *httplog.Logger
	log        *slog.Logger
	opts       Options
}

// New builds a server. A nil logger discards request and application logs.
func New(store Store, routes RouteSource, planner *fuelroute.Planner, logger *httplog.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = &httplog.Logger{
			Logger:  slog.New(slog.DiscardHandler),
			Options: httplog.Options{Concise: true},
		}
	}
	if opts.RouteCacheSize <= 0 {
		opts.RouteCacheSize = DefaultRouteCacheSize
	}
	routeCache, err := lru.New[string, *api.DirectionsResponse](opts.RouteCacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:      store,
		routes:     routes,
		planner:    planner,
		routeCache: routeCache,
		logger:     logger,
		log:        logger.Logger,
		opts:       opts,
	}, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}
	if s.opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
	}

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/fuelstations", s.listStations)
		r.Post("/fuelstation/create", s.createStation)
		r.Post("/optimized_route", s.optimizedRoute)
		r.Get("/trips", s.listTrips)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryLimit(r *http.Request, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	total, geocoded, err := s.store.Stats(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"stations": total,
		"geocoded": geocoded,
	})
}

func (s *Server) listStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.store.ListStations(r.Context(), queryLimit(r, 0))
	if err != nil {
		s.log.Error("Error listing stations", "error", err)
		writeError(w, http.StatusInternalServerError, "error listing stations")
		return
	}
	writeJSON(w, http.StatusOK, stations)
}

func (s *Server) createStation(w http.ResponseWriter, r *http.Request) {
	var st fuelroute.Station
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	st.ID = 0

	created, err := s.store.CreateStation(r.Context(), st)
	switch {
	case errors.Is(err, stationdb.ErrInvalidStation), errors.Is(err, stationdb.ErrDuplicateStation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("Error creating station", "error", err)
		writeError(w, http.StatusInternalServerError, "error creating station")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type routeRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type routeResponse struct {
	TripID        string                  `json:"trip_id,omitempty"`
	Route         *api.DirectionsResponse `json:"route"`
	OptimalStops  []fuelroute.Stop        `json:"optimal_stops"`
	TotalDistance float64                 `json:"total_distance"`
	TotalCost     float64                 `json:"total_cost"`
}

func parseRouteRequest(r *http.Request) (routeRequest, error) {
	var req routeRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
	} else {
		req.Origin = r.FormValue("origin")
		req.Destination = r.FormValue("destination")
	}
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	return req, nil
}

func (s *Server) optimizedRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseRouteRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Origin == "" || req.Destination == "" {
		writeError(w, http.StatusBadRequest, "Both origin and destination are required.")
		return
	}

	directions, err := s.fetchRoute(ctx, req.Origin, req.Destination)
	if err != nil {
		s.log.Error("Error fetching route", "origin", req.Origin, "destination", req.Destination, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to retrieve route from Google Maps.")
		return
	}

	segments, err := directions.Segments()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to retrieve route from Google Maps.")
		return
	}

	catalog, err := s.store.CatalogSnapshot(ctx)
	if err != nil {
		s.log.Error("Error loading station catalog", "error", err)
		writeError(w, http.StatusInternalServerError, "error loading station catalog")
		return
	}

	trip, err := s.planner.PlanTrip(segments, catalog)
	switch {
	case errors.Is(err, fuelroute.ErrMalformedRoute):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.log.Error("Error planning trip", "error", err)
		writeError(w, http.StatusInternalServerError, "error planning trip")
		return
	}

	resp := routeResponse{
		Route:         directions,
		OptimalStops:  trip.Stops,
		TotalDistance: trip.TotalDistanceMiles,
		TotalCost:     trip.TotalCost,
	}

	entry, err := s.store.LogTrip(ctx, stationdb.TripLog{
		Origin:        req.Origin,
		Destination:   req.Destination,
		TotalDistance: trip.TotalDistanceMiles,
		TotalCost:     trip.TotalCost,
		Stops:         len(trip.Stops),
	})
	if err != nil {
		// Log error but don't fail the request if logging fails
		s.log.Error("Failed to log trip", "error", err)
	} else {
		resp.TripID = entry.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

// fetchRoute serves repeated origin/destination pairs from the route cache.
func (s *Server) fetchRoute(ctx context.Context, origin, destination string) (*api.DirectionsResponse, error) {
	key := strings.ToLower(origin) + "|" + strings.ToLower(destination)
	if cached, ok := s.routeCache.Get(key); ok {
		s.log.Debug("Using cached route", "key", key)
		return cached, nil
	}

	directions, err := s.routes.FetchRoute(ctx, origin, destination)
	if err != nil {
		return nil, err
	}
	s.routeCache.Add(key, directions)
	return directions, nil
}

func (s *Server) listTrips(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.GetTripLogs(r.Context(), queryLimit(r, defaultTripLogLimit))
	if err != nil {
		s.log.Error("Error listing trips", "error", err)
		writeError(w, http.StatusInternalServerError, "error listing trips")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
