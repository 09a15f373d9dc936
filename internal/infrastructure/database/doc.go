// Package database provides the SQLite store backing the device presence cache.
//
// The connectivity core keeps its authoritative device list in an external
// registry and its live status in memory. This package persists the
// last-known presence of each device across restarts so the aggregator can
// seed itself before the first registry sync completes.
//
// # Schema
//
// The schema is managed by embedded SQL migrations registered through
// MigrationsFS (see the migrations package). Each *.up.sql file is applied
// once, in version order, tracked in schema_migrations.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: cfg.Cache.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
