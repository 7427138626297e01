package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/config"
	"github.com/runnerr0/tabcycle/internal/cycle"
	"github.com/runnerr0/tabcycle/internal/history"
	"github.com/runnerr0/tabcycle/internal/storage"
)

func tab(url string, hint int) history.TabRecord {
	return history.TabRecord{
		ID:           url,
		URL:          url,
		Title:        "title " + url,
		PositionHint: hint,
		LastAccessed: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Closed:       history.ClosedNo,
	}
}

func reportOf(r history.TabRecord) cycle.SelfReport {
	return cycle.SelfReport{URL: r.URL, Title: r.Title, PositionHint: r.PositionHint, Timestamp: r.LastAccessed}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.History.Backend = config.BackendSQLite
	cfg.Registry.Backend = config.BackendSQLite
	cfg.Activation.Backend = config.ActivationDryRun
	return cfg
}

type testApp struct {
	*App
	store    *storage.SQLiteStore
	executor *activation.DryRunExecutor
}

func newTestApp(t *testing.T, seed ...history.TabRecord) *testApp {
	t.Helper()
	cfg := testConfig(t)
	path, err := cfg.DBPath()
	require.NoError(t, err)
	store, err := storage.Open(path, storage.Options{HistoryKey: cfg.History.Key})
	require.NoError(t, err)
	if len(seed) > 0 {
		require.NoError(t, store.SaveHistory(context.Background(), seed))
	}
	exec := activation.NewDryRunExecutor(nil)
	a, err := Assemble(cfg, Components{
		History:   store,
		Registry:  store,
		Publisher: store,
		Executor:  exec,
		Closers:   []io.Closer{store},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return &testApp{App: a, store: store, executor: exec}
}

func TestOpen_BuildsConfiguredBackends(t *testing.T) {
	cfg := testConfig(t)
	a, err := Open(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	_, err = a.Controller("page-1").Report(ctx, reportOf(tab("https://a.example", 0)))
	require.NoError(t, err)

	records, err := a.History(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://a.example", records[0].URL)

	list, err := a.Instances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "page-1", list[0].ID)
	assert.NotNil(t, list[0].ReportedAt)
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Backend = "etcd"
	_, err := Open(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.backend")
}

func TestOpen_MemoryHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Backend = config.BackendMemory
	a, err := Open(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	st, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.HistoryEntries)
	assert.Equal(t, config.BackendMemory, st.HistoryBackend)
	assert.Nil(t, st.HistoryUpdatedAt)
}

func TestController_IsPerInstance(t *testing.T) {
	a := newTestApp(t)
	c1 := a.Controller("one")
	assert.Same(t, c1, a.Controller("one"))
	assert.NotSame(t, c1, a.Controller("two"))
	assert.Equal(t, "two", a.Controller("two").InstanceID())
}

func TestWithdraw_RemovesInstanceAndController(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	c1 := a.Controller("one")
	_, err := c1.Report(ctx, reportOf(tab("https://a.example", 0)))
	require.NoError(t, err)
	require.NoError(t, a.store.Publish(ctx, "two", tab("https://b.example", 1)))

	require.NoError(t, a.Withdraw(ctx, "one"))
	live, err := a.store.Live(ctx)
	require.NoError(t, err)
	assert.NotContains(t, live, "one")
	assert.Contains(t, live, "two")
	assert.NotSame(t, c1, a.Controller("one"), "a withdrawn instance starts fresh")

	assert.ErrorIs(t, a.Withdraw(ctx, "missing"), ErrUnknownInstance)
}

func TestCleanup_ReconcilesAgainstRegistry(t *testing.T) {
	a := newTestApp(t,
		tab("https://a.example", 0),
		tab("https://b.example", 1),
		tab("https://c.example", 2),
		tab("https://gone.example", 3),
	)
	ctx := context.Background()
	require.NoError(t, a.store.Publish(ctx, "1", tab("https://a.example", 0)))
	require.NoError(t, a.store.Publish(ctx, "2", tab("https://b.example", 1)))
	require.NoError(t, a.store.Publish(ctx, "3", tab("https://c.example", 2)))

	res, err := a.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 3, res.Kept)
	assert.Empty(t, res.Skipped)

	records, err := a.History(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestCleanup_SkipsOnThinRegistry(t *testing.T) {
	a := newTestApp(t,
		tab("https://a.example", 0),
		tab("https://b.example", 1),
		tab("https://c.example", 2),
		tab("https://d.example", 3),
	)
	ctx := context.Background()
	require.NoError(t, a.store.Publish(ctx, "1", tab("https://a.example", 0)))

	res, err := a.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, history.SkipTooFewLive, res.Skipped)
}

func TestDiscover_AddsUnknownPages(t *testing.T) {
	a := newTestApp(t, tab("https://a.example", 0))
	ctx := context.Background()
	require.NoError(t, a.store.Publish(ctx, "1", tab("https://a.example", 0)))
	require.NoError(t, a.store.Publish(ctx, "2", tab("https://new.example", 1)))

	added, err := a.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	records, err := a.History(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCheckURL(t *testing.T) {
	a := newTestApp(t)

	pattern, excluded := a.CheckURL("chrome://settings")
	assert.True(t, excluded)
	assert.Equal(t, "^chrome:", pattern)

	_, excluded = a.CheckURL("https://a.example")
	assert.False(t, excluded)
}

func TestSwitchToTitle(t *testing.T) {
	a := newTestApp(t)

	require.NoError(t, a.SwitchToTitle(context.Background(), "Inbox"))
	issued := a.executor.Issued()
	require.Len(t, issued, 1)
	assert.Equal(t, "Inbox", issued[0].Title)
	assert.False(t, issued[0].HasPosition())

	assert.ErrorIs(t, a.SwitchToTitle(context.Background(), ""), activation.ErrEmptyToken)
}

func TestStatus(t *testing.T) {
	a := newTestApp(t, tab("https://a.example", 0), tab("https://b.example", 1))
	ctx := context.Background()
	require.NoError(t, a.store.Publish(ctx, "1", tab("https://a.example", 0)))

	st, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.HistoryEntries)
	assert.Equal(t, 1, st.LiveInstances)
	assert.NotNil(t, st.HistoryUpdatedAt)
	assert.Empty(t, st.RegistryError)
	assert.Equal(t, history.DefaultReconcilePolicy(), st.Policy)
}

func TestCycleOptions(t *testing.T) {
	opts := CycleOptions(config.CycleConfig{OpenDebounceMS: 50, RegistryTimeoutMS: 2000})
	assert.Equal(t, 50*time.Millisecond, opts.OpenDebounce)
	assert.Equal(t, 2*time.Second, opts.RegistryTimeout)
	assert.Zero(t, opts.DoublePress)
}

func TestDBPathUnderStorageDir(t *testing.T) {
	cfg := testConfig(t)
	path, err := cfg.DBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Storage.Path, "tabcycle.db"), path)
}
