package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      func(tx *sql.Tx) error
}

// schema lists every migration in the order it must run.
var schema = []migration{
	{version: 1, name: "history_and_instances", up: migrateV001},
}

// connPragmas are set on every open. Several page instances share one
// database file.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 2000",
}

// Migrate brings db up to the latest schema version and returns how many
// migrations it applied. Each migration runs in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	for _, p := range connPragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return 0, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return 0, fmt.Errorf("create schema_migrations table: %w", err)
	}

	done, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range schema {
		if done[m.version] {
			continue
		}
		if err := runMigration(ctx, db, m); err != nil {
			return n, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		n++
	}
	return n, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

func runMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.up(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, or 0 on a database
// that was never migrated.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("read sqlite_master: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}

	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}
