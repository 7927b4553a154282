package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

var t0 = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE occupancy_snapshot (
			location_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			saved_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSaveLoad(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	snap := occupancy.Snapshot{
		"kitchen": {IsOccupied: true, OccupiedUntil: occupancy.Timestamp{Time: t0.Add(5 * time.Minute), Valid: true}},
		"office": {
			IsOccupied:     true,
			TimerRemaining: occupancy.Seconds{Duration: 42 * time.Second, Valid: true},
			LockedBy:       []string{"meeting"},
		},
	}
	if err := store.Save(ctx, snap, t0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() returned %d entries, want 2", len(got))
	}
	if k := got["kitchen"]; !k.OccupiedUntil.Time.Equal(t0.Add(5 * time.Minute)) {
		t.Errorf("kitchen OccupiedUntil = %v", k.OccupiedUntil.Time)
	}
	if o := got["office"]; o.TimerRemaining.Duration != 42*time.Second || len(o.LockedBy) != 1 {
		t.Errorf("office = %+v", o)
	}

	savedAt, ok, err := store.SavedAt(ctx)
	if err != nil || !ok || !savedAt.Equal(t0) {
		t.Errorf("SavedAt() = %v, %v, %v; want %v", savedAt, ok, err, t0)
	}
}

func TestSaveReplaces(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.Save(ctx, occupancy.Snapshot{"a": {IsOccupied: true, ActiveHolds: []string{"x"}}}, t0); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	if err := store.Save(ctx, occupancy.Snapshot{"b": {LockedBy: []string{"y"}}}, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Save 2: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := got["a"]; ok || len(got) != 1 {
		t.Errorf("Load() = %+v, want only b", got)
	}
}

func TestLoadEmpty(t *testing.T) {
	store := NewStore(setupTestDB(t))

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %+v, want empty", got)
	}
	if _, ok, _ := store.SavedAt(context.Background()); ok {
		t.Error("SavedAt() reported a snapshot on an empty table")
	}
}

func TestLoadRejectsForeignVersion(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	_, err := db.Exec(`INSERT INTO occupancy_snapshot VALUES ('a', '{}', 99, '2025-01-15T12:00:00Z')`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Load() error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestLoadSkipsCorruptRows(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	_, err := db.Exec(`INSERT INTO occupancy_snapshot VALUES
		('a', '{not json', 1, '2025-01-15T12:00:00Z'),
		('b', '{"is_occupied": true, "active_holds": ["tv"]}', 1, '2025-01-15T12:00:00Z')`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := got["a"]; ok {
		t.Error("corrupt row loaded")
	}
	if b := got["b"]; !b.IsOccupied || len(b.ActiveHolds) != 1 {
		t.Errorf("b = %+v", b)
	}
}

func TestClear(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.Save(ctx, occupancy.Snapshot{"a": {LockedBy: []string{"x"}}}, t0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ := store.Load(ctx) //nolint:errcheck // checked by length
	if len(got) != 0 {
		t.Errorf("after Clear Load() = %+v", got)
	}
}

func TestEngineRoundTrip(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()
	configs := []occupancy.LocationConfig{{
		ID: "lounge", Strategy: occupancy.StrategyIndependent,
		DefaultTimeout: time.Minute, HoldReleaseTimeout: time.Minute,
	}}

	src, err := occupancy.NewEngine(configs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	src.HandleEvent(occupancy.Event{LocationID: "lounge", Type: occupancy.EventHold, SourceID: "tv", Timestamp: t0}, t0)
	if err := store.Save(ctx, src.Export(), t0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst, _ := occupancy.NewEngine(configs) //nolint:errcheck // same configs as above
	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dst.Restore(snap, t0.Add(time.Hour))

	st, _ := dst.State("lounge")
	if !st.Occupied || !st.HeldBy("tv") {
		t.Errorf("restored lounge = %+v, want held by tv", st)
	}
}
