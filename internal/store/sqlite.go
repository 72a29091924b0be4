package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

const recordsTable = "forecast_records"

// SQLiteStore keeps records in a single SQLite table. Each Append runs in
// one transaction, so a failed batch leaves no rows behind.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	loc         *time.Location
	skipCorrupt bool
	log         *zap.Logger
}

// NewSQLiteStore opens (or creates) the SQLite file at dbPath and runs the
// migration that creates the records table if it does not exist.
// The caller must call Close() when the program shuts down.
func NewSQLiteStore(dbPath string, loc *time.Location, skipCorrupt bool, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath, loc: loc, skipCorrupt: skipCorrupt, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS forecast_records (
    id                         INTEGER PRIMARY KEY AUTOINCREMENT,
    location                   TEXT    NOT NULL,
    slot_start                 INTEGER NOT NULL,
    slot_date                  TEXT    NOT NULL,
    slot_hour                  INTEGER NOT NULL,
    temperature_c              REAL    NOT NULL,
    humidity_pct               REAL    NOT NULL,
    wind_speed_kmh             REAL    NOT NULL,
    condition                  TEXT    NOT NULL,
    cloud_cover_pct            REAL    NOT NULL,
    precipitation_probability  REAL    NOT NULL,
    precipitation_mm           REAL    NOT NULL,
    queried_at                 DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forecast_records_slot ON forecast_records(slot_start);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create %s table: %w", recordsTable, err)
	}
	s.log.Debug("SQLite migration applied", zap.String("path", s.path))
	return nil
}

// ReadState scans the slot column of every row.
func (s *SQLiteStore) ReadState(ctx context.Context) (forecast.State, error) {
	st := forecast.State{Keys: forecast.KeySet{}}

	rows, err := s.db.QueryContext(ctx, `SELECT id, slot_start FROM forecast_records ORDER BY id`)
	if err != nil {
		return st, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			start int64
		)
		if err := rows.Scan(&id, &start); err != nil {
			return st, fmt.Errorf("scan slot: %w", err)
		}

		ts := time.Unix(start, 0).In(s.loc)
		slot := forecast.NewSlot(ts, s.loc)
		if !slot.Time.Equal(ts) {
			err := fmt.Errorf("slot %s is not hour-aligned", ts.Format(time.RFC3339))
			if s.skipCorrupt {
				s.log.Warn("skipping corrupt row", zap.String("path", s.path), zap.Int64("id", id), zap.Error(err))
				st.Skipped++
				continue
			}
			return st, &forecast.CorruptStateError{Source: s.path + ":" + recordsTable, Line: int(id), Value: fmt.Sprint(start), Err: err}
		}

		st.Keys.Add(slot.Key())
		st.Count++
		if st.Last == nil || slot.After(*st.Last) {
			last := slot
			st.Last = &last
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterate slots: %w", err)
	}

	return st, nil
}

// Append stores all records in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, records []forecast.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	target := s.path + ":" + recordsTable

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &forecast.PersistenceError{Target: target, Err: fmt.Errorf("begin tx: %w", err)}
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO forecast_records (
    location, slot_start, slot_date, slot_hour, temperature_c, humidity_pct, wind_speed_kmh,
    condition, cloud_cover_pct, precipitation_probability, precipitation_mm, queried_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, &forecast.PersistenceError{Target: target, Err: fmt.Errorf("prepare insert: %w", err)}
	}
	defer stmt.Close()

	for _, r := range records {
		key := r.Slot.Key()
		if _, err := stmt.ExecContext(ctx,
			r.Location, r.Slot.Unix(), key.Date, key.Hour,
			r.TemperatureC, r.HumidityPct, r.WindSpeedKmh, string(r.Condition),
			r.CloudCoverPct, r.PrecipitationProbability, r.PrecipitationMm,
			r.QueriedAt.UTC(),
		); err != nil {
			_ = tx.Rollback()
			return 0, &forecast.PersistenceError{Target: target, Err: fmt.Errorf("insert %s: %w", r.Slot, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, &forecast.PersistenceError{Target: target, Err: fmt.Errorf("commit tx: %w", err)}
	}

	s.log.Debug("records persisted", zap.String("path", s.path), zap.Int("records", len(records)))
	return len(records), nil
}

// Close shuts down the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
