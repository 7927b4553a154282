// Package snapshot persists occupancy engine state in SQLite so that locks,
// holds and running timers survive a restart.
//
// Each non-default location is one row in occupancy_snapshot holding the
// JSON form of its occupancy.SnapshotEntry. Save replaces the whole table in
// one transaction; Load reassembles the occupancy.Snapshot for
// Engine.Restore, which applies the staleness policy.
//
// Rows carry a schema_version. Load refuses rows written by a different
// version with ErrUnsupportedVersion rather than guessing at their meaning.
package snapshot
