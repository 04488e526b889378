// Package store persists index runs and per-pixel time series to
// SQLite. Schema changes ship as embedded golang-migrate migrations and
// are applied on open.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/arden-geo/tsindex/internal/ard"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the results database.
type Store struct {
	*sql.DB
}

// Open opens (creating if necessary) the results database at path and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results db: %w", err)
	}
	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp runs all pending migrations up to the latest version.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: we don't close m here because it would close the underlying
	// DB connection.
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger interface
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[store] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// Run is one engine invocation's metadata.
type Run struct {
	RunID   string
	Sensor  string
	Indices []string
	Cells   int
	Dates   int
	Nodata  int16
}

// CreateRun inserts a run record and returns its generated identifier.
func (s *Store) CreateRun(sensorName string, indices []string, cells, dates int, nodata int16) (string, error) {
	runID := uuid.New().String()
	_, err := s.Exec(
		`INSERT INTO runs (run_id, sensor, indices, cells, dates, nodata) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, sensorName, strings.Join(indices, ","), cells, dates, nodata,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// FinishRun stamps the run's completion time.
func (s *Store) FinishRun(runID string) error {
	_, err := s.Exec(`UPDATE runs SET finished_at = CURRENT_TIMESTAMP WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// GetRun loads one run's metadata.
func (s *Store) GetRun(runID string) (*Run, error) {
	var r Run
	var indices string
	var nodata int
	err := s.QueryRow(
		`SELECT run_id, sensor, indices, cells, dates, nodata FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.Sensor, &indices, &r.Cells, &r.Dates, &nodata)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if indices != "" {
		r.Indices = strings.Split(indices, ",")
	}
	r.Nodata = int16(nodata)
	return &r, nil
}

// InsertSeries stores a time series for the given pixels (all pixels
// when pixels is nil) inside one transaction.
func (s *Store) InsertSeries(runID, indexID string, ts *ard.TimeSeries, pixels []int) error {
	if len(ts.TSS) == 0 {
		return nil
	}
	if pixels == nil {
		pixels = make([]int, len(ts.TSS[0]))
		for p := range pixels {
			pixels[p] = p
		}
	}

	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin series insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO series (run_id, index_id, pixel, date_idx, value, rms) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare series insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pixels {
		for t := range ts.TSS {
			var rms interface{}
			if ts.RMS != nil {
				rms = ts.RMS[t][p]
			}
			if _, err := stmt.Exec(runID, indexID, p, t, ts.TSS[t][p], rms); err != nil {
				return fmt.Errorf("failed to insert series cell (t=%d, p=%d): %w", t, p, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit series insert: %w", err)
	}
	return nil
}

// SeriesPoint is one (date, value) sample of a stored series.
type SeriesPoint struct {
	DateIdx int
	Value   int16
	RMS     *int16
}

// Series loads the stored series of one pixel in date order.
func (s *Store) Series(runID, indexID string, pixel int) ([]SeriesPoint, error) {
	rows, err := s.Query(
		`SELECT date_idx, value, rms FROM series
		 WHERE run_id = ? AND index_id = ? AND pixel = ?
		 ORDER BY date_idx`,
		runID, indexID, pixel,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var pt SeriesPoint
		var rms sql.NullInt64
		if err := rows.Scan(&pt.DateIdx, &pt.Value, &rms); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		if rms.Valid {
			v := int16(rms.Int64)
			pt.RMS = &v
		}
		out = append(out, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
