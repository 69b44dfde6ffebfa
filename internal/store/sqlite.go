package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/metrics"
)

// SQLiteStore is a climate.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and initializes the schema.
// path may be a plain file path, a "file:" URI or ":memory:".
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and avoids lock contention.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS daily_samples (
			zone TEXT NOT NULL,
			date TEXT NOT NULL,
			temp_celsius REAL,
			PRIMARY KEY (zone, date)
		)`,
		`CREATE TABLE IF NOT EXISTS monthly_aggregates (
			label TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			year INTEGER NOT NULL,
			date TEXT NOT NULL,
			s3_temp_celsius REAL NOT NULL,
			PRIMARY KEY (label, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monthly_label_year ON monthly_aggregates (label, year)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveDaily upserts daily samples in one transaction. NaN temperatures are stored as NULL.
func (s *SQLiteStore) SaveDaily(ctx context.Context, zone climate.Zone, samples []climate.DailySample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO daily_samples (zone, date, temp_celsius) VALUES (?, ?, ?)
		ON CONFLICT (zone, date) DO UPDATE SET temp_celsius = excluded.temp_celsius`)
	if err != nil {
		return fmt.Errorf("prepare daily insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range samples {
		var temp sql.NullFloat64
		if d.Valid() {
			temp = sql.NullFloat64{Float64: d.TemperatureC, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, zone.Label, d.Date.Format(climate.DateLayout), temp); err != nil {
			return fmt.Errorf("insert daily sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordRows("sqlite_daily", len(samples))
	return nil
}

// AppendMonthly upserts monthly rows in one transaction.
func (s *SQLiteStore) AppendMonthly(ctx context.Context, rows []climate.MonthlyAggregate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO monthly_aggregates (label, latitude, longitude, year, date, s3_temp_celsius)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (label, date) DO UPDATE SET s3_temp_celsius = excluded.s3_temp_celsius`)
	if err != nil {
		return fmt.Errorf("prepare monthly insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Label, r.Latitude, r.Longitude, r.Year,
			r.IntervalStart.Format(climate.DateLayout), r.SurfaceTempC); err != nil {
			return fmt.Errorf("insert monthly row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordRows("sqlite_monthly", len(rows))
	return nil
}

// GetDaily returns a zone's samples between from and to (inclusive).
func (s *SQLiteStore) GetDaily(ctx context.Context, label string, from, to time.Time) ([]climate.DailySample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, temp_celsius FROM daily_samples WHERE zone = ? AND date >= ? AND date <= ? ORDER BY date`,
		label, from.Format(climate.DateLayout), to.Format(climate.DateLayout))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close daily rows", "error", err)
		}
	}()

	var out []climate.DailySample
	for rows.Next() {
		var (
			date string
			temp sql.NullFloat64
		)
		if err := rows.Scan(&date, &temp); err != nil {
			return nil, err
		}
		d, err := time.Parse(climate.DateLayout, date)
		if err != nil {
			return nil, err
		}
		sample := climate.DailySample{Zone: label, Date: d, TemperatureC: math.NaN()}
		if temp.Valid {
			sample.TemperatureC = temp.Float64
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// GetMonthly returns a zone's monthly rows for year, or every year when year is 0.
func (s *SQLiteStore) GetMonthly(ctx context.Context, label string, year int) ([]climate.MonthlyAggregate, error) {
	query := `SELECT label, latitude, longitude, year, date, s3_temp_celsius FROM monthly_aggregates WHERE label = ?`
	args := []any{label}
	if year != 0 {
		query += ` AND year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close monthly rows", "error", err)
		}
	}()

	var out []climate.MonthlyAggregate
	for rows.Next() {
		var (
			r    climate.MonthlyAggregate
			date string
		)
		if err := rows.Scan(&r.Label, &r.Latitude, &r.Longitude, &r.Year, &date, &r.SurfaceTempC); err != nil {
			return nil, err
		}
		if r.IntervalStart, err = time.Parse(climate.DateLayout, date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
