package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabcycle/internal/history"
)

// openTestStore creates a migrated in-memory store for testing.
func openTestStore(t *testing.T, opts Options) *SQLiteStore {
	t.Helper()
	db := openTestDB(t)
	_, err := Migrate(context.Background(), db)
	require.NoError(t, err)

	store, err := NewSQLiteStore(db, opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func tab(url string, hint int) history.TabRecord {
	return history.TabRecord{ID: "id-" + url, URL: url, Title: url, PositionHint: hint}
}

func TestLoadHistory_EmptyWhenUnset(t *testing.T) {
	store := openTestStore(t, Options{})

	got, err := store.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSaveHistory_Roundtrip(t *testing.T) {
	store := openTestStore(t, Options{})
	ctx := context.Background()

	records := []history.TabRecord{tab("https://a.example", 0), tab("https://b.example", history.NoPosition)}
	records[1].Closed = history.ClosedYes
	require.NoError(t, store.SaveHistory(ctx, records))

	got, err := store.LoadHistory(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://a.example", got[0].URL)
	assert.Equal(t, 0, got[0].PositionHint)
	assert.Equal(t, history.NoPosition, got[1].PositionHint)
	assert.Equal(t, history.ClosedYes, got[1].Closed)

	// Overwrite replaces the whole blob.
	require.NoError(t, store.SaveHistory(ctx, records[:1]))
	got, err = store.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveHistory_KeysAreIndependent(t *testing.T) {
	db := openTestDB(t)
	_, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	a, err := NewSQLiteStore(db, Options{HistoryKey: "a"})
	require.NoError(t, err)
	b, err := NewSQLiteStore(db, Options{HistoryKey: "b"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.SaveHistory(ctx, []history.TabRecord{tab("https://a.example", 0)}))

	got, err := b.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPublish_LiveSnapshot(t *testing.T) {
	store := openTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, "p1", tab("https://a.example", 0)))
	require.NoError(t, store.Publish(ctx, "p2", tab("https://b.example", 1)))
	require.NoError(t, store.Publish(ctx, "p1", tab("https://c.example", 0)))

	live, err := store.Live(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "https://c.example", live["p1"].URL)
	assert.Equal(t, "https://b.example", live["p2"].URL)
}

func TestLive_StaleInstanceHasNoRecord(t *testing.T) {
	store := openTestStore(t, Options{StaleAfter: time.Minute})
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store.SetClock(func() time.Time { return now })
	require.NoError(t, store.Publish(ctx, "old", tab("https://a.example", 0)))

	now = now.Add(2 * time.Minute)
	require.NoError(t, store.Publish(ctx, "new", tab("https://b.example", 1)))

	live, err := store.Live(ctx)
	require.NoError(t, err)
	require.Contains(t, live, "old")
	assert.Nil(t, live["old"])
	assert.Equal(t, "https://b.example", live["new"].URL)

	n, err := store.PruneStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	live, err = store.Live(ctx)
	require.NoError(t, err)
	assert.NotContains(t, live, "old")
}

func TestPruneStale_DisabledWithoutWindow(t *testing.T) {
	store := openTestStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, store.Publish(ctx, "p1", tab("https://a.example", 0)))

	n, err := store.PruneStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithdraw(t *testing.T) {
	store := openTestStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, store.Publish(ctx, "p1", tab("https://a.example", 0)))

	require.NoError(t, store.Withdraw(ctx, "p1"))
	assert.ErrorIs(t, store.Withdraw(ctx, "p1"), ErrNotFound)

	live, err := store.Live(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestNewSQLiteStore_PartialPrepareFailureClosesStatements(t *testing.T) {
	db := openTestDB(t)
	// kv exists but instances does not, so preparing stops halfway.
	_, err := db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL)`)
	require.NoError(t, err)

	s := &SQLiteStore{db: db}
	require.Error(t, s.prepareStatements())
	assert.Nil(t, s.getValue)
	assert.Nil(t, s.putValue)
	assert.Nil(t, s.upsertInstance)

	_, err = NewSQLiteStore(db, Options{})
	assert.ErrorContains(t, err, "prepare statements")
}

func TestGetStats(t *testing.T) {
	store := openTestStore(t, Options{StaleAfter: time.Minute})
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.HistoryEntries)
	assert.True(t, stats.HistoryUpdatedAt.IsZero())

	require.NoError(t, store.SaveHistory(ctx, []history.TabRecord{tab("https://a.example", 0), tab("https://b.example", 1)}))
	require.NoError(t, store.Publish(ctx, "stale", tab("https://a.example", 0)))
	now = now.Add(5 * time.Minute)
	require.NoError(t, store.Publish(ctx, "fresh", tab("https://b.example", 1)))

	stats, err = store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.HistoryEntries)
	assert.Equal(t, 2, stats.Instances)
	assert.Equal(t, 1, stats.LiveInstances)
	assert.Equal(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), stats.HistoryUpdatedAt)
	assert.Equal(t, 1, stats.SchemaVersion)
}

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabcycle.db")
	ctx := context.Background()

	store, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, store.SaveHistory(ctx, []history.TabRecord{tab("https://a.example", 0)}))
	require.NoError(t, store.Close())

	store, err = Open(path, Options{})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.LoadHistory(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://a.example", got[0].URL)
}

func TestLoadHistory_CorruptBlob(t *testing.T) {
	db := openTestDB(t)
	_, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	store, err := NewSQLiteStore(db, Options{})
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO kv (key, value) VALUES (?, ?)", DefaultHistoryKey, "{not json")
	require.NoError(t, err)

	_, err = store.LoadHistory(context.Background())
	assert.ErrorContains(t, err, "decode history")
}
