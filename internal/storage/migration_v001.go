package storage

import "database/sql"

// migrateV001 creates the key/value table holding the history blob and the
// instances table backing the live-tab registry.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS instances (
			instance_id TEXT PRIMARY KEY,
			url         TEXT NOT NULL,
			record      TEXT NOT NULL,
			reported_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_instances_reported_at ON instances(reported_at)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_url         ON instances(url)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
