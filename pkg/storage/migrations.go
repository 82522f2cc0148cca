package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	name string
	sql  string
}

// migrations are applied in order; a migration's version is its index + 1.
// Never edit an applied migration, append a new one instead.
var migrations = []migration{
	{
		name: "create exports journal",
		sql: `CREATE TABLE IF NOT EXISTS exports (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL CHECK(kind IN ('bb', 'hr')),
			year        INTEGER NOT NULL,
			month       INTEGER NOT NULL CHECK(month BETWEEN 1 AND 12),
			path        TEXT NOT NULL,
			samples     INTEGER NOT NULL DEFAULT 0,
			bytes       INTEGER NOT NULL DEFAULT 0,
			checksum    TEXT NOT NULL DEFAULT '',
			exported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		name: "index exports by pair and time",
		sql: `CREATE INDEX IF NOT EXISTS idx_exports_pair ON exports(kind, year, month);
			CREATE INDEX IF NOT EXISTS idx_exports_exported_at ON exports(exported_at);`,
	},
}

// schemaVersion returns the highest applied migration version.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// runMigrations brings the schema up to date, one transaction per migration.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary (%d)", current, len(migrations))
	}

	for i, m := range migrations[current:] {
		version := current + i + 1
		if err := applyMigration(ctx, db, version, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", version, m.name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}
