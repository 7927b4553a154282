package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// SchemaVersion is the version written with every row.
const SchemaVersion = 1

// ErrUnsupportedVersion is returned when stored rows use a schema version
// this build does not understand.
var ErrUnsupportedVersion = errors.New("snapshot: unsupported schema version")

// Store is a SQLite-backed snapshot store.
type Store struct {
	db *sql.DB
}

// NewStore creates a snapshot store on an open database.
// The occupancy_snapshot table must already exist (see migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save replaces the stored snapshot with snap in a single transaction.
func (s *Store) Save(ctx context.Context, snap occupancy.Snapshot, savedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM occupancy_snapshot"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO occupancy_snapshot
		(location_id, payload, schema_version, saved_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	stamp := savedAt.UTC().Format(time.RFC3339Nano)
	for id, entry := range snap {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encoding snapshot row %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(payload), SchemaVersion, stamp); err != nil {
			return fmt.Errorf("writing snapshot row %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. An empty table yields an empty snapshot.
//
// Rows with an undecodable payload are skipped; a row with a foreign schema
// version fails the whole load with ErrUnsupportedVersion.
func (s *Store) Load(ctx context.Context) (occupancy.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT location_id, payload, schema_version FROM occupancy_snapshot ORDER BY location_id")
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()

	snap := make(occupancy.Snapshot)
	for rows.Next() {
		var id, payload string
		var version int
		if err := rows.Scan(&id, &payload, &version); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if version != SchemaVersion {
			return nil, fmt.Errorf("%w: row %s has version %d, want %d", ErrUnsupportedVersion, id, version, SchemaVersion)
		}
		var entry occupancy.SnapshotEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			continue
		}
		snap[id] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return snap, nil
}

// SavedAt returns when the snapshot was last written.
// The bool is false when no snapshot is stored.
func (s *Store) SavedAt(ctx context.Context) (time.Time, bool, error) {
	var stamp sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(saved_at) FROM occupancy_snapshot").Scan(&stamp); err != nil {
		return time.Time{}, false, fmt.Errorf("reading snapshot time: %w", err)
	}
	if !stamp.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, stamp.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing snapshot time: %w", err)
	}
	return t, true, nil
}

// Clear removes the stored snapshot.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM occupancy_snapshot"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}
