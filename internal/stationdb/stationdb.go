package stationdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/patrickmn/go-cache"
	"github.com/rubiojr/gasroute/internal/fuelroute"
)

const (
	defaultCacheExpirationMinutes = 10
	defaultCacheCleanupMinutes    = 30
	defaultCacheSize              = -1024 * 1024 // negative value for pages
	defaultPageSize               = 4096
	catalogCacheKey               = "catalog_snapshot"
	maxLatitude                   = 90
	maxLongitude                  = 180

	// fixed width so that ORDER BY created_at is chronological
	tripTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	ErrInvalidStation   = errors.New("invalid station")
	ErrDuplicateStation = errors.New("station already exists")
)

type Storage struct {
	db    *sql.DB
	cache *cache.Cache
	log   *slog.Logger
}

func NewStorage(ctx context.Context, dbPath string, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := configureSQLitePragmas(ctx, db, defaultCacheSize); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Storage{
		db:    db,
		cache: cache.New(defaultCacheExpirationMinutes*time.Minute, defaultCacheCleanupMinutes*time.Minute),
		log:   logger,
	}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS fuel_stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		opis_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		city TEXT NOT NULL,
		state TEXT NOT NULL,
		rack_id TEXT NOT NULL,
		retail_price REAL NOT NULL,
		latitude REAL,
		longitude REAL,
		UNIQUE(opis_id, name, address, city, state, rack_id, retail_price)
	);
	CREATE INDEX IF NOT EXISTS idx_fuel_stations_latitude_longitude ON fuel_stations(latitude, longitude);

	CREATE TABLE IF NOT EXISTS trip_logs (
		id TEXT PRIMARY KEY,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		total_distance REAL NOT NULL,
		total_cost REAL NOT NULL,
		stops INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trip_logs_created_at ON trip_logs(created_at);
	`

	_, err := db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("error creating table: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	if s.cache != nil {
		s.cache.Flush()
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// invalidate drops cached reads after a write.
func (s *Storage) invalidate() {
	s.cache.Flush()
}

// ValidateStation checks the fields a caller may supply when creating a station.
func ValidateStation(st *fuelroute.Station) error {
	var problems []string
	if strings.TrimSpace(st.Name) == "" {
		problems = append(problems, "name is required")
	}
	if math.IsNaN(st.Price) || math.IsInf(st.Price, 0) || st.Price < 0 {
		problems = append(problems, "retail_price must be a non-negative number")
	}
	if (st.Latitude == nil) != (st.Longitude == nil) {
		problems = append(problems, "latitude and longitude must be set together")
	}
	if (st.Latitude != nil && !finite(*st.Latitude)) || (st.Longitude != nil && !finite(*st.Longitude)) {
		problems = append(problems, "coordinates must be finite numbers")
	}
	if st.Latitude != nil && math.Abs(*st.Latitude) > maxLatitude {
		problems = append(problems, "latitude out of range")
	}
	if st.Longitude != nil && math.Abs(*st.Longitude) > maxLongitude {
		problems = append(problems, "longitude out of range")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStation, strings.Join(problems, "; "))
	}
	return nil
}

// CreateStation validates and stores a new station, returning it with its ID set.
func (s *Storage) CreateStation(ctx context.Context, st fuelroute.Station) (fuelroute.Station, error) {
	if err := ValidateStation(&st); err != nil {
		return fuelroute.Station{}, err
	}

	var existing int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM fuel_stations
		WHERE opis_id = ? AND name = ? AND address = ? AND city = ? AND state = ? AND rack_id = ? AND retail_price = ?
	`, st.OPISID, st.Name, st.Address, st.City, st.State, st.RackID, st.Price).Scan(&existing)
	if err == nil {
		return fuelroute.Station{}, fmt.Errorf("%w: id %d", ErrDuplicateStation, existing)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fuelroute.Station{}, fmt.Errorf("error checking for existing station: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_stations (opis_id, name, address, city, state, rack_id, retail_price, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, st.OPISID, st.Name, st.Address, st.City, st.State, st.RackID, st.Price, nullFloat(st.Latitude), nullFloat(st.Longitude))
	if err != nil {
		return fuelroute.Station{}, fmt.Errorf("error inserting station: %w", err)
	}

	st.ID, err = res.LastInsertId()
	if err != nil {
		return fuelroute.Station{}, fmt.Errorf("error reading station id: %w", err)
	}
	s.invalidate()

	s.log.Debug("Station created", "id", st.ID, "name", st.Name)
	return st, nil
}

const selectStationSQL = `SELECT id, opis_id, name, address, city, state, rack_id, retail_price, latitude, longitude FROM fuel_stations`

// ListStations returns stations ordered by ID. A limit of 0 returns all of them.
func (s *Storage) ListStations(ctx context.Context, limit int) ([]fuelroute.Station, error) {
	query := selectStationSQL + " ORDER BY id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryStations(ctx, query)
}

// StationsMissingCoordinates returns the stations that still need geocoding.
func (s *Storage) StationsMissingCoordinates(ctx context.Context) ([]fuelroute.Station, error) {
	return s.queryStations(ctx, selectStationSQL+" WHERE latitude IS NULL OR longitude IS NULL ORDER BY id")
}

// CatalogSnapshot returns every geocoded station. The result is cached until the
// next write and must be treated as read-only.
func (s *Storage) CatalogSnapshot(ctx context.Context) ([]fuelroute.Station, error) {
	if cached, found := s.cache.Get(catalogCacheKey); found {
		s.log.Debug("Using cached data", "key", catalogCacheKey)
		return cached.([]fuelroute.Station), nil
	}

	stations, err := s.queryStations(ctx, selectStationSQL+" WHERE latitude IS NOT NULL AND longitude IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error loading catalog: %w", err)
	}

	s.cache.Set(catalogCacheKey, stations, cache.DefaultExpiration)
	return stations, nil
}

func (s *Storage) queryStations(ctx context.Context, query string) ([]fuelroute.Station, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying stations: %w", err)
	}
	defer rows.Close()

	stations := []fuelroute.Station{}
	for rows.Next() {
		var (
			st       fuelroute.Station
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&st.ID, &st.OPISID, &st.Name, &st.Address, &st.City, &st.State, &st.RackID, &st.Price, &lat, &lng); err != nil {
			return nil, fmt.Errorf("error scanning station: %w", err)
		}
		if lat.Valid {
			st.Latitude = &lat.Float64
		}
		if lng.Valid {
			st.Longitude = &lng.Float64
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error: %w", err)
	}
	return stations, nil
}

// Stats reports how many stations are stored and how many of them are geocoded.
func (s *Storage) Stats(ctx context.Context) (total, geocoded int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN latitude IS NOT NULL AND longitude IS NOT NULL THEN 1 END)
		FROM fuel_stations
	`).Scan(&total, &geocoded)
	if err != nil {
		return 0, 0, fmt.Errorf("error counting stations: %w", err)
	}
	return total, geocoded, nil
}

// CoordinateUpdate sets the position of one station.
type CoordinateUpdate struct {
	ID        int64
	Latitude  float64
	Longitude float64
}

// UpdateCoordinates writes a batch of coordinates in a single transaction.
func (s *Storage) UpdateCoordinates(ctx context.Context, updates []CoordinateUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("rollback error: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "UPDATE fuel_stations SET latitude = ?, longitude = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.Latitude, u.Longitude, u.ID); err != nil {
			return fmt.Errorf("error updating station %d: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	s.invalidate()
	return nil
}

// TripLog is a row in the trip_logs table.
type TripLog struct {
	ID            string    `json:"id"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	TotalDistance float64   `json:"total_distance"`
	TotalCost     float64   `json:"total_cost"`
	Stops         int       `json:"stops"`
	CreatedAt     time.Time `json:"created_at"`
}

// LogTrip records a planned trip. ID and CreatedAt are filled in when empty.
func (s *Storage) LogTrip(ctx context.Context, entry TripLog) (TripLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trip_logs (id, origin, destination, total_distance, total_cost, stops, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Origin, entry.Destination, entry.TotalDistance, entry.TotalCost, entry.Stops,
		entry.CreatedAt.UTC().Format(tripTimeLayout))
	if err != nil {
		return TripLog{}, fmt.Errorf("error logging trip: %w", err)
	}
	return entry, nil
}

// GetTripLogs returns the most recent trips first. A limit of 0 returns all of them.
func (s *Storage) GetTripLogs(ctx context.Context, limit int) ([]TripLog, error) {
	query := `SELECT id, origin, destination, total_distance, total_cost, stops, created_at
			  FROM trip_logs
			  ORDER BY created_at DESC `
	if limit > 0 {
		query += fmt.Sprintf("LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error retrieving trip logs: %w", err)
	}
	defer rows.Close()

	logs := []TripLog{}
	for rows.Next() {
		var (
			entry     TripLog
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Origin, &entry.Destination, &entry.TotalDistance,
			&entry.TotalCost, &entry.Stops, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning trip log: %w", err)
		}
		entry.CreatedAt, err = time.Parse(tripTimeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("error parsing trip date %s: %w", createdAt, err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return logs, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func configureSQLitePragmas(ctx context.Context, db *sql.DB, cacheSize int) error {
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 10000;"); err != nil {
		return fmt.Errorf("error setting busy timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("error setting journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA temp_store = FILE;"); err != nil {
		return fmt.Errorf("error setting temp store: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		return fmt.Errorf("error setting synchronous: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA cache_size = %d;", cacheSize)); err != nil {
		return fmt.Errorf("error setting cache size: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA page_size = %d;", defaultPageSize)); err != nil {
		return fmt.Errorf("error setting page size: %w", err)
	}
	return nil
}
