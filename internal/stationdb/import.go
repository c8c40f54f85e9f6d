package stationdb

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
)

// csvColumns is the column count of the OPIS truck stop price export:
// opis_id, name, address, city, state, rack_id, retail_price.
const csvColumns = 7

// ImportResult summarises a CSV import.
type ImportResult struct {
	Created  int
	Existing int
	Skipped  int
}

// ImportCSV loads stations from an OPIS price export. The header row is skipped.
// A row identical to one already stored is counted as existing and not inserted
// again; rows that cannot be parsed are logged and skipped.
func (s *Storage) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		return result, fmt.Errorf("error reading csv header: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("rollback error: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO fuel_stations (opis_id, name, address, city, state, rack_id, retail_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return result, fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.log.Warn("Skipping unreadable csv row", "line", line, "error", err)
			result.Skipped++
			continue
		}

		row, err := parseRow(record)
		if err != nil {
			s.log.Warn("Skipping csv row", "line", line, "error", err)
			result.Skipped++
			continue
		}

		res, err := stmt.ExecContext(ctx, row.OPISID, row.Name, row.Address, row.City, row.State, row.RackID, row.Price)
		if err != nil {
			return result, fmt.Errorf("error inserting station on line %d: %w", line, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("error reading affected rows: %w", err)
		}
		if n > 0 {
			result.Created++
			s.log.Debug("Imported station", "name", row.Name)
		} else {
			result.Existing++
			s.log.Debug("Station already exists", "name", row.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("error committing transaction: %w", err)
	}
	if result.Created > 0 {
		s.invalidate()
	}

	return result, nil
}

type csvRow struct {
	OPISID, Name, Address, City, State, RackID string
	Price                                      float64
}

func parseRow(record []string) (csvRow, error) {
	if len(record) < csvColumns {
		return csvRow{}, fmt.Errorf("expected %d columns, got %d", csvColumns, len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	if record[1] == "" {
		return csvRow{}, errors.New("empty station name")
	}

	price, err := strconv.ParseFloat(record[6], 64)
	if err != nil {
		return csvRow{}, fmt.Errorf("invalid retail price %q: %w", record[6], err)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return csvRow{}, fmt.Errorf("invalid retail price %q", record[6])
	}

	return csvRow{
		OPISID:  record[0],
		Name:    record[1],
		Address: record[2],
		City:    record[3],
		State:   record[4],
		RackID:  record[5],
		Price:   price,
	}, nil
}
