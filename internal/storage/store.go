package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/runnerr0/tabcycle/internal/history"
)

// Options configures a store.
type Options struct {
	// HistoryKey names the persisted history blob.
	HistoryKey string
	// StaleAfter is how long an instance report stays live. Zero means
	// reports never go stale.
	StaleAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.HistoryKey == "" {
		o.HistoryKey = DefaultHistoryKey
	}
	return o
}

// SQLiteStore keeps the history blob and the live-tab registry in one
// SQLite database shared by every page instance on the machine.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
	now  func() time.Time

	getValue       *sql.Stmt
	putValue       *sql.Stmt
	upsertInstance *sql.Stmt
	deleteInstance *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB, opts Options) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, opts: opts.withDefaults(), now: time.Now}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

// Open opens the database at path, runs migrations and returns the store.
// The returned store owns the database handle.
func Open(path string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s, err := NewSQLiteStore(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// prepareStatements prepares every statement or, on failure, closes the
// ones it already prepared.
func (s *SQLiteStore) prepareStatements() (err error) {
	defer func() {
		if err != nil {
			s.closeStatements()
		}
	}()

	s.getValue, err = s.db.Prepare(`SELECT value, updated_at FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	s.putValue, err = s.db.Prepare(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.upsertInstance, err = s.db.Prepare(`
		INSERT INTO instances (instance_id, url, record, reported_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			url = excluded.url,
			record = excluded.record,
			reported_at = excluded.reported_at
	`)
	if err != nil {
		return err
	}

	s.deleteInstance, err = s.db.Prepare(`DELETE FROM instances WHERE instance_id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// SetClock replaces the time source used for staleness checks.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(v string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", v)
}

// LoadHistory returns the persisted history, or an empty one if nothing
// has been saved yet.
func (s *SQLiteStore) LoadHistory(ctx context.Context) ([]history.TabRecord, error) {
	var raw, updated string
	err := s.getValue.QueryRowContext(ctx, s.opts.HistoryKey).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return []history.TabRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.opts.HistoryKey, err)
	}
	return decodeHistory(raw)
}

// SaveHistory replaces the persisted history.
func (s *SQLiteStore) SaveHistory(ctx context.Context, records []history.TabRecord) error {
	raw, err := encodeHistory(records)
	if err != nil {
		return err
	}
	ts := s.now().UTC().Format(timeLayout)
	if _, err := s.putValue.ExecContext(ctx, s.opts.HistoryKey, raw, ts); err != nil {
		return fmt.Errorf("write %s: %w", s.opts.HistoryKey, err)
	}
	return nil
}

// Publish records rec as the current page of instanceID.
func (s *SQLiteStore) Publish(ctx context.Context, instanceID string, rec history.TabRecord) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	ts := s.now().UTC().Format(timeLayout)
	if _, err := s.upsertInstance.ExecContext(ctx, instanceID, rec.URL, raw, ts); err != nil {
		return fmt.Errorf("publish instance %s: %w", instanceID, err)
	}
	return nil
}

// Withdraw removes instanceID from the registry.
func (s *SQLiteStore) Withdraw(ctx context.Context, instanceID string) error {
	res, err := s.deleteInstance.ExecContext(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("withdraw instance %s: %w", instanceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Instances lists every registered instance ordered by id, stale ones
// included and flagged.
func (s *SQLiteStore) Instances(ctx context.Context) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instance_id, record, reported_at FROM instances ORDER BY instance_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	now := s.now()
	var out []Instance
	for rows.Next() {
		var id, raw, reported string
		if err := rows.Scan(&id, &raw, &reported); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", id, err)
		}
		inst := Instance{ID: id, Record: rec}
		inst.ReportedAt, _ = parseTimestamp(reported)
		inst.Stale = s.isStale(inst.ReportedAt, now)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) isStale(reported, now time.Time) bool {
	if s.opts.StaleAfter <= 0 {
		return false
	}
	return now.Sub(reported) > s.opts.StaleAfter
}

// Live returns the registry snapshot: every instance id mapped to its last
// self-reported record, or nil when the report has gone stale.
func (s *SQLiteStore) Live(ctx context.Context) (map[string]*history.TabRecord, error) {
	instances, err := s.Instances(ctx)
	if err != nil {
		return nil, err
	}
	return liveMap(instances), nil
}

func liveMap(instances []Instance) map[string]*history.TabRecord {
	live := make(map[string]*history.TabRecord, len(instances))
	for _, inst := range instances {
		if inst.Stale {
			live[inst.ID] = nil
			continue
		}
		rec := inst.Record
		live[inst.ID] = &rec
	}
	return live
}

// PruneStale deletes instances whose report is older than the staleness
// window and returns how many were removed.
func (s *SQLiteStore) PruneStale(ctx context.Context) (int64, error) {
	if s.opts.StaleAfter <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.opts.StaleAfter).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM instances WHERE reported_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune instances: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var raw, updated string
	err := s.getValue.QueryRowContext(ctx, s.opts.HistoryKey).Scan(&raw, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.opts.HistoryKey, err)
	default:
		records, err := decodeHistory(raw)
		if err != nil {
			return nil, err
		}
		stats.HistoryEntries = len(records)
		stats.HistoryUpdatedAt, _ = parseTimestamp(updated)
	}

	instances, err := s.Instances(ctx)
	if err != nil {
		return nil, err
	}
	stats.Instances = len(instances)
	if stats.SchemaVersion, err = SchemaVersion(ctx, s.db); err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if !inst.Stale {
			stats.LiveInstances++
		}
	}
	return stats, nil
}

func (s *SQLiteStore) closeStatements() {
	for _, stmt := range []**sql.Stmt{&s.getValue, &s.putValue, &s.upsertInstance, &s.deleteInstance} {
		if *stmt != nil {
			(*stmt).Close()
			*stmt = nil
		}
	}
}

// Close releases all prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	s.closeStatements()
	return s.db.Close()
}
