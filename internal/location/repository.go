package location

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for location persistence operations.
type Repository interface {
	Create(ctx context.Context, loc *Location) error
	Get(ctx context.Context, id string) (*Location, error)
	List(ctx context.Context) ([]Location, error)
	ListChildren(ctx context.Context, parentID string) ([]Location, error)
	Update(ctx context.Context, loc *Location) error
	Upsert(ctx context.Context, loc *Location) error
	Delete(ctx context.Context, id string) error

	AddSensor(ctx context.Context, s *Sensor) error
	ListSensors(ctx context.Context) ([]Sensor, error)
	ListSensorsByLocation(ctx context.Context, locationID string) ([]Sensor, error)
	RemoveSensor(ctx context.Context, deviceID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed location repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const locationColumns = `id, parent_id, name, type, sort_order, occupancy, created_at, updated_at`

// Create inserts a new location.
// Returns ErrLocationExists if the ID is taken and ErrLocationNotFound if
// the parent does not exist.
func (r *SQLiteRepository) Create(ctx context.Context, loc *Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	settings, err := encodeSettings(loc.Occupancy)
	if err != nil {
		return err
	}
	const query = `INSERT INTO locations (id, parent_id, name, type, sort_order, occupancy)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		loc.ID, nullIfEmpty(loc.ParentID), loc.Name, typeOrDefault(loc.Type), loc.SortOrder, settings)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("%w: %s", ErrLocationExists, loc.ID)
		}
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("%w: parent %s", ErrLocationNotFound, loc.ParentID)
		}
		return fmt.Errorf("inserting location %s: %w", loc.ID, err)
	}
	return nil
}

// Get returns a single location by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = ?`
	loc, err := scanLocation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("scanning location %s: %w", id, err)
	}
	return loc, nil
}

// List returns all locations ordered by sort_order then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations ORDER BY sort_order, name`
	return r.queryLocations(ctx, query)
}

// ListChildren returns the direct children of a location.
// An empty parentID lists the roots.
func (r *SQLiteRepository) ListChildren(ctx context.Context, parentID string) ([]Location, error) {
	if parentID == "" {
		query := `SELECT ` + locationColumns + ` FROM locations WHERE parent_id IS NULL ORDER BY sort_order, name`
		return r.queryLocations(ctx, query)
	}
	query := `SELECT ` + locationColumns + ` FROM locations WHERE parent_id = ? ORDER BY sort_order, name`
	return r.queryLocations(ctx, query, parentID)
}

// Update replaces an existing location's fields.
// Re-parenting under one of the location's own descendants is rejected
// with ErrInvalidTopology.
func (r *SQLiteRepository) Update(ctx context.Context, loc *Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	if err := r.checkReparent(ctx, loc.ID, loc.ParentID); err != nil {
		return err
	}
	settings, err := encodeSettings(loc.Occupancy)
	if err != nil {
		return err
	}
	const query = `UPDATE locations SET parent_id = ?, name = ?, type = ?, sort_order = ?,
		occupancy = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		nullIfEmpty(loc.ParentID), loc.Name, typeOrDefault(loc.Type), loc.SortOrder, settings, loc.ID)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("%w: parent %s", ErrLocationNotFound, loc.ParentID)
		}
		return fmt.Errorf("updating location %s: %w", loc.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// Upsert creates the location or replaces it if the ID already exists.
// Used by Seed so a topology file can be re-applied idempotently.
func (r *SQLiteRepository) Upsert(ctx context.Context, loc *Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	settings, err := encodeSettings(loc.Occupancy)
	if err != nil {
		return err
	}
	const query = `INSERT INTO locations (id, parent_id, name, type, sort_order, occupancy)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			type = excluded.type,
			sort_order = excluded.sort_order,
			occupancy = excluded.occupancy,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`
	_, err = r.db.ExecContext(ctx, query,
		loc.ID, nullIfEmpty(loc.ParentID), loc.Name, typeOrDefault(loc.Type), loc.SortOrder, settings)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("%w: parent %s", ErrLocationNotFound, loc.ParentID)
		}
		return fmt.Errorf("upserting location %s: %w", loc.ID, err)
	}
	return nil
}

// Delete removes a single location by ID.
// Returns ErrLocationNotFound if the location does not exist.
// Returns ErrLocationHasChildren if other locations still reference it.
// Sensors bound to the location are removed with it.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	var childCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM locations WHERE parent_id = ?", id).Scan(&childCount); err != nil {
		return fmt.Errorf("counting children of %s: %w", id, err)
	}
	if childCount > 0 {
		return ErrLocationHasChildren
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM locations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting location %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// AddSensor binds a device to a location, replacing any existing binding
// for the same device.
func (r *SQLiteRepository) AddSensor(ctx context.Context, s *Sensor) error {
	if err := ValidateSensor(s); err != nil {
		return err
	}
	const query = `INSERT INTO location_sensors (device_id, location_id, kind, state_key, timeout_seconds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			location_id = excluded.location_id,
			kind = excluded.kind,
			state_key = excluded.state_key,
			timeout_seconds = excluded.timeout_seconds`
	_, err := r.db.ExecContext(ctx, query, s.DeviceID, s.LocationID, s.Kind, s.StateKey, s.TimeoutSeconds)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("%w: %s", ErrLocationNotFound, s.LocationID)
		}
		return fmt.Errorf("binding sensor %s: %w", s.DeviceID, err)
	}
	return nil
}

// ListSensors returns every sensor binding ordered by location then device.
func (r *SQLiteRepository) ListSensors(ctx context.Context) ([]Sensor, error) {
	const query = `SELECT device_id, location_id, kind, state_key, timeout_seconds, created_at
		FROM location_sensors ORDER BY location_id, device_id`
	return r.querySensors(ctx, query)
}

// ListSensorsByLocation returns the sensors bound to one location.
func (r *SQLiteRepository) ListSensorsByLocation(ctx context.Context, locationID string) ([]Sensor, error) {
	const query = `SELECT device_id, location_id, kind, state_key, timeout_seconds, created_at
		FROM location_sensors WHERE location_id = ? ORDER BY device_id`
	return r.querySensors(ctx, query, locationID)
}

// RemoveSensor deletes a device binding.
// Returns ErrSensorNotFound if the device is not bound.
func (r *SQLiteRepository) RemoveSensor(ctx context.Context, deviceID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM location_sensors WHERE device_id = ?", deviceID)
	if err != nil {
		return fmt.Errorf("removing sensor %s: %w", deviceID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// checkReparent walks up from the proposed parent; reaching id means the
// move would create a cycle.
func (r *SQLiteRepository) checkReparent(ctx context.Context, id, parentID string) error {
	cur := parentID
	for depth := 0; cur != ""; depth++ {
		if cur == id {
			return fmt.Errorf("%w: %s cannot be its own ancestor", ErrInvalidTopology, id)
		}
		if depth > maxTreeDepth {
			return fmt.Errorf("%w: tree deeper than %d", ErrInvalidTopology, maxTreeDepth)
		}
		var next sql.NullString
		err := r.db.QueryRowContext(ctx, "SELECT parent_id FROM locations WHERE id = ?", cur).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: parent %s", ErrLocationNotFound, cur)
		}
		if err != nil {
			return fmt.Errorf("walking ancestors of %s: %w", id, err)
		}
		cur = next.String
	}
	return nil
}

// queryLocations executes a query and returns a slice of Location.
func (r *SQLiteRepository) queryLocations(ctx context.Context, query string, args ...any) ([]Location, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		locs = append(locs, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location rows: %w", err)
	}
	return locs, nil
}

// querySensors executes a query and returns a slice of Sensor.
func (r *SQLiteRepository) querySensors(ctx context.Context, query string, args ...any) ([]Sensor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	var sensors []Sensor
	for rows.Next() {
		var s Sensor
		var createdAt string
		if err := rows.Scan(&s.DeviceID, &s.LocationID, &s.Kind, &s.StateKey, &s.TimeoutSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning sensor row: %w", err)
		}
		s.CreatedAt = parseTime(createdAt)
		sensors = append(sensors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor rows: %w", err)
	}
	return sensors, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLocation scans one location from a row or cursor.
func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	var parentID sql.NullString
	var settingsJSON, createdAt, updatedAt string

	if err := row.Scan(&loc.ID, &parentID, &loc.Name, &loc.Type, &loc.SortOrder,
		&settingsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	loc.ParentID = parentID.String
	loc.Occupancy = parseSettings(settingsJSON)
	loc.CreatedAt = parseTime(createdAt)
	loc.UpdatedAt = parseTime(updatedAt)
	return &loc, nil
}

// isConstraint reports whether err is a SQLite constraint violation with
// one of the given extended codes.
func isConstraint(err error, codes ...sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return false
	}
	return slices.Contains(codes, se.ExtendedCode)
}

// nullIfEmpty maps an empty string onto SQL NULL.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func typeOrDefault(t string) string {
	if t == "" {
		return TypeRoom
	}
	return t
}

// encodeSettings serialises occupancy settings for the JSON column.
func encodeSettings(s Settings) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding occupancy settings: %w", err)
	}
	return string(b), nil
}

// parseSettings deserialises the JSON column. Malformed JSON yields defaults.
func parseSettings(s string) Settings {
	var out Settings
	if s == "" || s == "{}" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return Settings{}
	}
	return out
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
