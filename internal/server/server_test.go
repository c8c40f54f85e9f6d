package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/httplog/v2"
	"github.com/rubiojr/gasroute/internal/fuelroute"
	"github.com/rubiojr/gasroute/internal/stationdb"
	"github.com/rubiojr/gasroute/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoutes returns a straight route of n 100-mile steps heading east from (0,0).
type fakeRoutes struct {
	steps int
	err   error
	calls atomic.Int32
}

func (f *fakeRoutes) FetchRoute(ctx context.Context, origin, destination string) (*api.DirectionsResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	leg := api.Leg{StartAddress: origin, EndAddress: destination}
	for i := 1; i <= f.steps; i++ {
		leg.Steps = append(leg.Steps, api.Step{
			Distance:    api.TextValue{Text: "100 mi", Value: 100 * fuelroute.MetersPerMile},
			EndLocation: api.LatLng{Lat: 0, Lng: float64(i)},
		})
	}
	return &api.DirectionsResponse{
		Status: api.ApiResultOK,
		Routes: []api.Route{{Summary: "test", Legs: []api.Leg{leg}}},
	}, nil
}

type testEnv struct {
	store  *stationdb.Storage
	routes *fakeRoutes
	srv    *httptest.Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()

	logger := httplog.NewLogger("gasroute-test", httplog.Options{
		LogLevel: slog.LevelError,
		Concise:  true,
	})

	store, err := stationdb.NewStorage(ctx, filepath.Join(t.TempDir(), "stations.db"), logger.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	planner, err := fuelroute.NewPlanner(fuelroute.DefaultConfig(), logger.Logger)
	require.NoError(t, err)

	routes := &fakeRoutes{steps: 5}
	s, err := New(store, routes, planner, logger, opts)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{store: store, routes: routes, srv: srv}
}

func ptr(f float64) *float64 { return &f }

func (e *testEnv) addStation(t *testing.T, name string, price float64, lat, lng *float64) {
	t.Helper()
	_, err := e.store.CreateStation(context.Background(), fuelroute.Station{
		OPISID:    name,
		Name:      name,
		Address:   "I-70",
		City:      "Nowhere",
		State:     "KS",
		RackID:    "1",
		Price:     price,
		Latitude:  lat,
		Longitude: lng,
	})
	require.NoError(t, err)
}

func postJSON(t *testing.T, u string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(u, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type routeResult struct {
	TripID        string           `json:"trip_id"`
	Route         map[string]any   `json:"route"`
	OptimalStops  []fuelroute.Stop `json:"optimal_stops"`
	TotalDistance float64          `json:"total_distance"`
	TotalCost     float64          `json:"total_cost"`
}

func TestOptimizedRoute(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.addStation(t, "MIDWAY", 3.00, ptr(0), ptr(4.5))
	env.addStation(t, "FAR", 1.00, ptr(10), ptr(10))
	env.addStation(t, "UNGEOCODED", 0.50, nil, nil)

	resp := postJSON(t, env.srv.URL+"/api/optimized_route", routeRequest{Origin: "A", Destination: "B"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	got := decode[routeResult](t, resp)
	require.Len(t, got.OptimalStops, 1)
	assert.Equal(t, "MIDWAY", got.OptimalStops[0].Station.Name)
	assert.InDelta(t, 500.0, got.OptimalStops[0].CumulativeDistance, 1e-6)
	assert.InDelta(t, 500.0, got.TotalDistance, 1e-6)
	assert.InDelta(t, 150.0, got.TotalCost, 1e-9)
	assert.Equal(t, "OK", got.Route["status"])
	assert.NotEmpty(t, got.TripID)

	logs, err := env.store.GetTripLogs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, got.TripID, logs[0].ID)
	assert.Equal(t, "A", logs[0].Origin)
	assert.Equal(t, 1, logs[0].Stops)
}

func TestOptimizedRoute_FormEncoded(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, err := http.PostForm(env.srv.URL+"/api/optimized_route", url.Values{
		"origin":      {"Denver, CO"},
		"destination": {"Hays, KS"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[routeResult](t, resp)
	assert.Empty(t, got.OptimalStops)
	assert.NotNil(t, got.OptimalStops)
	assert.Zero(t, got.TotalCost)
}

func TestOptimizedRoute_MissingEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, body := range []routeRequest{{}, {Origin: "A"}, {Destination: "B"}, {Origin: " ", Destination: "B"}} {
		resp := postJSON(t, env.srv.URL+"/api/optimized_route", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		got := decode[errorResponse](t, resp)
		assert.Equal(t, "Both origin and destination are required.", got.Error)
	}
	assert.Zero(t, env.routes.calls.Load())
}

func TestOptimizedRoute_DirectionsFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.routes.err = errors.New("upstream down")

	resp := postJSON(t, env.srv.URL+"/api/optimized_route", routeRequest{Origin: "A", Destination: "B"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decode[errorResponse](t, resp)
	assert.Equal(t, "Failed to retrieve route from Google Maps.", got.Error)
}

func TestOptimizedRoute_EmptyRouteIsBadRequest(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.routes.steps = 0

	resp := postJSON(t, env.srv.URL+"/api/optimized_route", routeRequest{Origin: "A", Destination: "B"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOptimizedRoute_CachesDirections(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, body := range []routeRequest{
		{Origin: "Denver", Destination: "Hays"},
		{Origin: "denver", Destination: "HAYS"},
		{Origin: "Hays", Destination: "Denver"},
	} {
		resp := postJSON(t, env.srv.URL+"/api/optimized_route", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, int32(2), env.routes.calls.Load())
}

func TestCreateAndListStations(t *testing.T) {
	env := newTestEnv(t, Options{})

	station := map[string]any{
		"opis_id":      "7",
		"name":         "WOODSHED OF BIG CABIN",
		"address":      "I-44, EXIT 283 & US-69",
		"city":         "Big Cabin",
		"state":        "OK",
		"rack_id":      "307",
		"retail_price": 3.007,
	}

	resp := postJSON(t, env.srv.URL+"/api/fuelstation/create", station)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[fuelroute.Station](t, resp)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "WOODSHED OF BIG CABIN", created.Name)

	resp = postJSON(t, env.srv.URL+"/api/fuelstation/create", station)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	station["retail_price"] = -1
	station["opis_id"] = "8"
	resp = postJSON(t, env.srv.URL+"/api/fuelstation/create", station)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	listResp, err := http.Get(env.srv.URL + "/api/fuelstations")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	stations := decode[[]fuelroute.Station](t, listResp)
	require.Len(t, stations, 1)
	assert.Equal(t, created.ID, stations[0].ID)
}

func TestCreateStation_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, err := http.Post(env.srv.URL+"/api/fuelstation/create", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTrips(t *testing.T) {
	env := newTestEnv(t, Options{})

	for i := 0; i < 3; i++ {
		resp := postJSON(t, env.srv.URL+"/api/optimized_route", routeRequest{Origin: "A", Destination: "B"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(env.srv.URL + "/api/trips?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decode[[]stationdb.TripLog](t, resp)
	assert.Len(t, logs, 2)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.addStation(t, "GEOCODED", 3.00, ptr(1), ptr(1))
	env.addStation(t, "PENDING", 3.00, nil, nil)

	resp, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, 2.0, got["stations"])
	assert.Equal(t, 1.0, got["geocoded"])
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: 2})

	var statuses []int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(env.srv.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Options{AllowedOrigins: []string{"https://example.com"}})

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNew_NilLogger(t *testing.T) {
	store, err := stationdb.NewStorage(context.Background(), filepath.Join(t.TempDir(), "stations.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	planner, err := fuelroute.NewPlanner(fuelroute.DefaultConfig(), nil)
	require.NoError(t, err)

	s, err := New(store, &fakeRoutes{steps: 5}, planner, nil, Options{})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/optimized_route", routeRequest{Origin: "A", Destination: "B"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
