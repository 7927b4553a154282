package migrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-occupancy/internal/location"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
	"github.com/nerrad567/gray-logic-occupancy/internal/snapshot"
)

func migratedDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, Source()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSource_AllMigrationsApply(t *testing.T) {
	db := migratedDB(t)

	applied, pending, err := db.GetMigrationStatus(context.Background(), Source())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want none", pending)
	}
	if len(applied) < 3 {
		t.Errorf("applied = %d migrations, want at least 3", len(applied))
	}
}

func TestSource_DownMigrationsReverse(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()

	for {
		applied, _, err := db.GetMigrationStatus(ctx, Source())
		if err != nil {
			t.Fatalf("GetMigrationStatus() error = %v", err)
		}
		if len(applied) == 0 {
			break
		}
		if err := db.MigrateDown(ctx, Source()); err != nil {
			t.Fatalf("MigrateDown() at %s error = %v", applied[len(applied)-1].Version, err)
		}
	}

	// Everything rolled back, so a full re-apply must succeed.
	if err := db.Migrate(ctx, Source()); err != nil {
		t.Fatalf("re-Migrate() error = %v", err)
	}
}

func TestSchema_RepositoryAndSnapshotStore(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()

	repo := location.NewSQLiteRepository(db.DB)
	for _, l := range []location.Location{
		{ID: "home", Name: "Home", Type: location.TypeBuilding},
		{ID: "kitchen", ParentID: "home", Name: "Kitchen"},
	} {
		if err := repo.Create(ctx, &l); err != nil {
			t.Fatalf("Create(%s) error = %v", l.ID, err)
		}
	}
	if err := repo.AddSensor(ctx, &location.Sensor{DeviceID: "pir-1", LocationID: "kitchen", Kind: "motion"}); err != nil {
		t.Fatalf("AddSensor() error = %v", err)
	}

	// RESTRICT on the parent and CASCADE on sensors come from the schema.
	if err := repo.Delete(ctx, "home"); !errors.Is(err, location.ErrLocationHasChildren) {
		t.Errorf("Delete(home) error = %v, want ErrLocationHasChildren", err)
	}
	if err := repo.Delete(ctx, "kitchen"); err != nil {
		t.Fatalf("Delete(kitchen) error = %v", err)
	}
	sensors, err := repo.ListSensors(ctx)
	if err != nil {
		t.Fatalf("ListSensors() error = %v", err)
	}
	if len(sensors) != 0 {
		t.Errorf("sensors after cascade = %v, want none", sensors)
	}

	store := snapshot.NewStore(db.DB)
	savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := occupancy.Snapshot{"home": {IsOccupied: true, ActiveHolds: []string{"tv"}}}
	if err := store.Save(ctx, snap, savedAt); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got["home"].IsOccupied {
		t.Errorf("loaded = %+v", got)
	}
}

func TestSchema_AuditTrail(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()
	repo := audit.NewSQLiteRepository(db.DB)

	e := &audit.Entry{LocationID: "lounge", Command: "lock", SourceID: "movie", Origin: audit.OriginMQTT}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	res, err := repo.List(ctx, audit.Filter{LocationID: "lounge"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Entries[0].ID != e.ID {
		t.Errorf("List() = %+v", res)
	}
}
