// Package database provides SQLite connectivity for the occupancy service.
//
// This package manages:
//   - Opening the database with WAL mode and enforced foreign keys
//   - Versioned schema migrations read from an fs.FS
//   - Connection lifecycle (single writer)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Migrations are additive; new columns must be NULLABLE
// or carry a DEFAULT.
package database
