package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/app"
	"github.com/runnerr0/tabcycle/internal/config"
	"github.com/runnerr0/tabcycle/internal/history"
	"github.com/runnerr0/tabcycle/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testConfig returns a config rooted in a temp dir with a dry-run executor
// and a daemon port nothing listens on.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Activation.Backend = config.ActivationDryRun
	cfg.Daemon.Port = 1
	return cfg
}

// writeTestConfig writes testConfig to a file and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	cfg := testConfig(t)
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(cfg.Storage.Path, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

type testApp struct {
	*app.App
	store    *storage.SQLiteStore
	executor *activation.DryRunExecutor
}

// newTestApp builds an app over a file-backed SQLite store seeded with urls.
func newTestApp(t *testing.T, urls ...string) *testApp {
	t.Helper()
	exec := activation.NewDryRunExecutor(nil)
	a := newTestAppWith(t, exec, urls...)
	a.executor = exec
	return a
}

// newTestAppWith is newTestApp with a caller-supplied executor.
func newTestAppWith(t *testing.T, exec activation.Executor, urls ...string) *testApp {
	t.Helper()
	cfg := testConfig(t)
	path, err := cfg.DBPath()
	require.NoError(t, err)
	store, err := storage.Open(path, storage.Options{HistoryKey: cfg.History.Key})
	require.NoError(t, err)

	if len(urls) > 0 {
		seed := make([]history.TabRecord, len(urls))
		for i, u := range urls {
			seed[i] = history.TabRecord{ID: u, URL: u, Title: "Title " + u, PositionHint: i, Closed: history.ClosedNo}
		}
		require.NoError(t, store.SaveHistory(context.Background(), seed))
	}

	a, err := app.Assemble(cfg, app.Components{
		History:   store,
		Registry:  store,
		Publisher: store,
		Executor:  exec,
		Closers:   []io.Closer{store},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return &testApp{App: a, store: store}
}

func (a *testApp) urls(t *testing.T) []string {
	t.Helper()
	records, err := a.History(context.Background())
	require.NoError(t, err)
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return out
}
