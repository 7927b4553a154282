// Package migrations embeds the occupancy service's SQL migrations.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Source returns the embedded migration set for database.Migrate.
func Source() database.Source {
	return database.Source{FS: migrationsFS, Dir: "."}
}
