package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteProvider implements the Database interface with a single SQLite
// file.
type SQLiteProvider struct {
	path string
	conn *sql.DB
}

func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "data/solarprep.db", "Database file used by the sqlite storage provider")

	s := &SQLiteProvider{}
	lflag.Do(func() {
		s.path = *path
	})
	return s
}

// NewSQLiteProvider returns an uninitialized provider for path.
func NewSQLiteProvider(path string) *SQLiteProvider {
	return &SQLiteProvider{path: path}
}

// Validate checks if the provider is properly configured.
func (s *SQLiteProvider) Validate() error {
	if s.path == "" {
		return fmt.Errorf("sqlite-path is required")
	}
	return nil
}

// Init opens the database and creates the schema.
// This must be called before using the provider methods.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY when installations run concurrently
	conn.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		installation_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		unix_nano INTEGER NOT NULL,
		localminute TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (installation_id, channel, unix_nano)
	);
	CREATE TABLE IF NOT EXISTS capacities (
		installation_id TEXT PRIMARY KEY,
		capacity REAL NOT NULL,
		cluster INTEGER NOT NULL,
		number_of_files INTEGER NOT NULL
	);
	`
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return fmt.Errorf("initializing schema: %w", err)
	}
	s.conn = conn
	return nil
}

// Close closes the database connection.
func (s *SQLiteProvider) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// UpsertSeries replaces the series in a single transaction.
func (s *SQLiteProvider) UpsertSeries(ctx context.Context, installationID string, channel types.Channel, readings []types.Reading) error {
	if installationID == "" {
		return fmt.Errorf("installationID cannot be empty")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM readings WHERE installation_id = ? AND channel = ?`,
		installationID, string(channel),
	); err != nil {
		return fmt.Errorf("deleting series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO readings (installation_id, channel, unix_nano, localminute, value)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx,
			installationID, string(channel), r.Time.UnixNano(), r.Time.Format(SeriesTimeLayout), r.Value,
		); err != nil {
			return fmt.Errorf("inserting reading: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing series: %w", err)
	}
	return nil
}

// GetSeries returns the series ordered by instant.
func (s *SQLiteProvider) GetSeries(ctx context.Context, installationID string, channel types.Channel) ([]types.Reading, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT localminute, value
	FROM readings
	WHERE installation_id = ? AND channel = ?
	ORDER BY unix_nano
	`, installationID, string(channel))
	if err != nil {
		return nil, fmt.Errorf("querying series: %w", err)
	}
	defer rows.Close()

	var readings []types.Reading
	for rows.Next() {
		var ts string
		var r types.Reading
		if err := rows.Scan(&ts, &r.Value); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Time, err = time.Parse(SeriesTimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing localminute: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrSeriesNotFound, channel, installationID)
	}
	return readings, nil
}

// UpsertCapacities inserts or replaces capacity rows.
func (s *SQLiteProvider) UpsertCapacities(ctx context.Context, capacities []types.Capacity) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range capacities {
		if c.InstallationID == "" {
			return fmt.Errorf("capacity missing installationID")
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO capacities (installation_id, capacity, cluster, number_of_files)
		VALUES (?, ?, ?, ?)
		`, c.InstallationID, c.Capacity, c.Cluster, c.NumberOfFiles); err != nil {
			return fmt.Errorf("upserting capacity: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing capacities: %w", err)
	}
	return nil
}

// GetCapacity returns one installation's capacity row.
func (s *SQLiteProvider) GetCapacity(ctx context.Context, installationID string) (types.Capacity, error) {
	var c types.Capacity
	err := s.conn.QueryRowContext(ctx, `
	SELECT installation_id, capacity, cluster, number_of_files
	FROM capacities
	WHERE installation_id = ?
	`, installationID).Scan(&c.InstallationID, &c.Capacity, &c.Cluster, &c.NumberOfFiles)
	if err == sql.ErrNoRows {
		return types.Capacity{}, ErrCapacityNotFound
	}
	if err != nil {
		return types.Capacity{}, fmt.Errorf("querying capacity: %w", err)
	}
	return c, nil
}

// GetCapacities returns all capacity rows ordered by installation.
func (s *SQLiteProvider) GetCapacities(ctx context.Context) ([]types.Capacity, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT installation_id, capacity, cluster, number_of_files
	FROM capacities
	ORDER BY installation_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying capacities: %w", err)
	}
	defer rows.Close()

	var capacities []types.Capacity
	for rows.Next() {
		var c types.Capacity
		if err := rows.Scan(&c.InstallationID, &c.Capacity, &c.Cluster, &c.NumberOfFiles); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		capacities = append(capacities, c)
	}
	return capacities, rows.Err()
}
