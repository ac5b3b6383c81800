// Package migrations embeds the SQL schema of Gray Logic Audio.
//
// Files follow YYYYMMDD_HHMMSS_description.{up,down}.sql and are applied by
// database.DB.Migrate when FS is passed as database.Config.Migrations.
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
