// Package database provides SQLite connectivity for Gray Logic Audio.
//
// It opens the bridge's local database in WAL mode with a single writer and
// applies the embedded schema migrations. The database holds node property
// snapshots and issued API tokens; it is never on the query path of the
// PipeWire bridge itself.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:       cfg.Database.Path,
//	    WALMode:    cfg.Database.WALMode,
//	    Migrations: migrations.FS,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or have DEFAULT
// values, and each .up.sql has a matching .down.sql.
package database
