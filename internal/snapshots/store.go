// Package snapshots provides SQLite-backed persistence for pinned trending
// snapshots.
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hypewatch/internal/domain/hype"
	"hypewatch/internal/metrics"
	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
)

// Store wraps a SQLite database holding the pinned snapshot history.
// Retention is bounded: saving past the cap evicts the oldest entries.
type Store struct {
	db           *sql.DB
	maxSnapshots int
	log          *logger.Logger
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/hypewatch/snapshots.db.
func New(dbPath string, maxSnapshots int, log *logger.Logger) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "hypewatch", "snapshots.db")
	}
	if maxSnapshots < 1 {
		maxSnapshots = 10
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set WAL mode")
	}

	s := &Store{db: db, maxSnapshots: maxSnapshots, log: log}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create tables")
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id          TEXT PRIMARY KEY,
			timeframe   TEXT NOT NULL,
			captured_at INTEGER NOT NULL,
			tickers     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_captured_at ON snapshots(captured_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save pins the given trending table. Saving an empty table is a no-op and
// returns nil rather than an error: there is nothing worth pinning.
// The returned snapshot carries the generated id and capture time.
func (s *Store) Save(timeframe string, tickers []hype.TrendingTicker) (*hype.Snapshot, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	if timeframe == "" {
		timeframe = hype.DefaultWindow
	}

	snap := &hype.Snapshot{
		ID:         uuid.NewString(),
		Timeframe:  timeframe,
		CapturedAt: time.Now().UTC(),
		Tickers:    tickers,
	}

	payload, err := json.Marshal(snap.Tickers)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tickers")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT INTO snapshots (id, timeframe, captured_at, tickers)
		VALUES (?,?,?,?)`,
		snap.ID, snap.Timeframe, snap.CapturedAt.UnixNano(), string(payload),
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert snapshot")
	}

	if _, err := tx.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY captured_at DESC LIMIT ?
		)`, s.maxSnapshots); err != nil {
		return nil, errors.Wrap(err, "failed to enforce snapshot cap")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit snapshot")
	}

	metrics.SnapshotsSaved.Inc()
	return snap, nil
}

// List returns all pinned snapshots, newest first. Rows whose ticker payload
// no longer decodes are skipped and logged instead of failing the whole list.
func (s *Store) List() ([]hype.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, timeframe, captured_at, tickers
		FROM snapshots ORDER BY captured_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query snapshots")
	}
	defer rows.Close()

	snaps := []hype.Snapshot{}
	for rows.Next() {
		var snap hype.Snapshot
		var capturedAtNano int64
		var payload string

		if err := rows.Scan(&snap.ID, &snap.Timeframe, &capturedAtNano, &payload); err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot")
		}

		if err := json.Unmarshal([]byte(payload), &snap.Tickers); err != nil {
			s.log.Warnf("Skipping snapshot %s with undecodable tickers: %v", snap.ID, err)
			continue
		}

		snap.CapturedAt = time.Unix(0, capturedAtNano).UTC()
		snaps = append(snaps, snap)
	}

	return snaps, rows.Err()
}

// Delete removes one snapshot by id. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete snapshot")
	}
	return nil
}

// Clear removes the entire snapshot history.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM snapshots`); err != nil {
		return errors.Wrap(err, "failed to clear snapshots")
	}
	return nil
}
