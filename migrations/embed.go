// Package migrations embeds SQL migration files into the binary.
//
// This allows the presence cache schema to be created without the SQL
// files being present on the filesystem at runtime.
package migrations

import (
	"embed"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
