package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabcycle/internal/exclusion"
)

func newTestManager(t *testing.T, seed ...TabRecord) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(seed...)
	rules := exclusion.MustCompile([]string{`^about:`, `^chrome:`, `service_worker`})
	m := NewManager(store, rules, DefaultReconcilePolicy(), nil)
	return m, store
}

func rec(url string, hint int) TabRecord {
	return TabRecord{ID: "id-" + url, URL: url, Title: "Title " + url, PositionHint: hint}
}

func urls(records []TabRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return out
}

func liveSet(urls ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set
}

// --- Upsert ---

func TestUpsert_PutsRecordAtFront(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2))
	ctx := context.Background()

	ok, err := m.Upsert(ctx, TabRecord{URL: "C", Title: "C again", PositionHint: 2})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, urls(got))
	assert.Equal(t, "C again", got[0].Title)
}

func TestUpsert_NeverDuplicatesURL(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	seq := []string{"A", "B", "A", "C", "B", "B", "D", "A", "C"}
	for _, u := range seq {
		_, err := m.Upsert(ctx, TabRecord{URL: u, PositionHint: NoPosition})
		require.NoError(t, err)

		got, err := m.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, u, got[0].URL, "upserted record should be first")
		assert.Len(t, URLSet(got), len(got), "history must not hold duplicate urls")
	}

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "D", "B"}, urls(got))
}

func TestUpsert_KeepsIDOfExistingRecord(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, TabRecord{URL: "https://a.example"})
	require.NoError(t, err)
	first, err := m.Load(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first[0].ID)

	_, err = m.Upsert(ctx, TabRecord{URL: "https://b.example"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, TabRecord{URL: "https://a.example", Title: "renamed"})
	require.NoError(t, err)

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestUpsert_DropsExcludedAndEmpty(t *testing.T) {
	m, store := newTestManager(t, rec("A", 0))
	ctx := context.Background()

	for _, u := range []string{"about:blank", "chrome://newtab", "https://x.example/service_worker.js", ""} {
		ok, err := m.Upsert(ctx, TabRecord{URL: u})
		require.NoError(t, err)
		assert.False(t, ok, "url %q should be dropped", u)
	}

	assert.Equal(t, 0, store.Saves())
	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, urls(got))
}

func TestUpsert_StampsLastAccessed(t *testing.T) {
	m, _ := newTestManager(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })

	_, err := m.Upsert(context.Background(), TabRecord{URL: "A"})
	require.NoError(t, err)

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixed, got[0].LastAccessed)
}

// --- Reconcile ---

func TestReconcile_RemovesClosedKeepsOrder(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2), rec("D", 3))
	ctx := context.Background()

	res, err := m.Reconcile(ctx, liveSet("A", "C", "D"))
	require.NoError(t, err)
	assert.Equal(t, SkipNone, res.Skipped)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, []string{"A", "C", "D"}, urls(res.History))

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, urls(got))
	for _, r := range got {
		assert.Equal(t, ClosedNo, r.Closed)
	}
}

func TestReconcile_TooFewLiveURLsIsNoop(t *testing.T) {
	m, store := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2), rec("D", 3))
	ctx := context.Background()

	for _, live := range []map[string]struct{}{liveSet(), liveSet("A")} {
		res, err := m.Reconcile(ctx, live)
		require.NoError(t, err)
		assert.Equal(t, SkipTooFewLive, res.Skipped)
		assert.Equal(t, []string{"A", "B", "C", "D"}, urls(res.History))
	}
	assert.Equal(t, 0, store.Saves())
}

func TestReconcile_SmallHistoryTrustsSingleLiveURL(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2))

	res, err := m.Reconcile(context.Background(), liveSet("A"))
	require.NoError(t, err)
	assert.Equal(t, SkipNone, res.Skipped)
	assert.Equal(t, []string{"A"}, urls(res.History))
}

func TestReconcile_MassRemovalIsNoop(t *testing.T) {
	var seed []TabRecord
	for i := 0; i < 10; i++ {
		seed = append(seed, rec(fmt.Sprintf("U%d", i), i))
	}
	m, store := newTestManager(t, seed...)

	res, err := m.Reconcile(context.Background(), liveSet("U0", "U5", "elsewhere"))
	require.NoError(t, err)
	assert.Equal(t, SkipMassRemoval, res.Skipped)
	assert.Len(t, res.History, 10)
	assert.Equal(t, 0, store.Saves())
}

func TestReconcile_RemovalAtThresholdCommits(t *testing.T) {
	var seed []TabRecord
	for i := 0; i < 10; i++ {
		seed = append(seed, rec(fmt.Sprintf("U%d", i), i))
	}
	m, _ := newTestManager(t, seed...)

	// 7 of 10 removed is exactly 70%, which is not above the limit.
	res, err := m.Reconcile(context.Background(), liveSet("U0", "U1", "U2"))
	require.NoError(t, err)
	assert.Equal(t, SkipNone, res.Skipped)
	assert.Equal(t, 7, res.Removed)
}

func TestReconcile_CustomPolicy(t *testing.T) {
	store := NewMemoryStore(rec("A", 0), rec("B", 1), rec("C", 2), rec("D", 3))
	m := NewManager(store, nil, ReconcilePolicy{MinLiveURLs: 1, MinHistoryLen: 0, MaxRemovalRatio: 1}, nil)

	res, err := m.Reconcile(context.Background(), liveSet("D"))
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, urls(res.History))
}

func TestReconcile_EmptyHistory(t *testing.T) {
	m, store := newTestManager(t)
	res, err := m.Reconcile(context.Background(), liveSet("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, SkipEmptyHistory, res.Skipped)
	assert.Empty(t, res.History)
	assert.Equal(t, 0, store.Saves())
}

// --- MergeDiscovered ---

func TestMergeDiscovered_PrependsInDiscoveryOrder(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1))

	found := []TabRecord{rec("X", 5), rec("A", 0), rec("about:blank", 9), rec("Y", 6), rec("X", 5)}
	got, added, err := m.MergeDiscovered(context.Background(), found)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"X", "Y", "A", "B"}, urls(got))
}

func TestMergeDiscovered_NothingNewDoesNotSave(t *testing.T) {
	m, store := newTestManager(t, rec("A", 0))
	_, added, err := m.MergeDiscovered(context.Background(), []TabRecord{rec("A", 0)})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, store.Saves())
}

// --- ApplySwitch / Promote / MarkClosed / Clear ---

func TestApplySwitch_ThreeWayReorder(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2))
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })
	ctx := context.Background()

	history, err := m.Load(ctx)
	require.NoError(t, err)

	target, ok := ResolvePrevious(history, "A")
	require.True(t, ok)
	assert.Equal(t, "B", target.URL)

	got, err := m.ApplySwitch(ctx, target, TabRecord{URL: "A", PositionHint: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, urls(got))
	assert.Equal(t, "id-A", got[1].ID)
	assert.Equal(t, fixed, got[1].LastAccessed)
}

func TestApplySwitch_RepeatedTogglesBetweenLastTwo(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2), rec("D", 3))
	ctx := context.Background()

	current := rec("A", 0)
	var visited []string
	for i := 0; i < 4; i++ {
		history, err := m.Load(ctx)
		require.NoError(t, err)
		target, ok := ResolvePrevious(history, current.URL)
		require.True(t, ok)
		_, err = m.ApplySwitch(ctx, target, current)
		require.NoError(t, err)
		visited = append(visited, target.URL)
		current = target
	}
	assert.Equal(t, []string{"B", "A", "B", "A"}, visited)
}

func TestApplySwitch_ExcludedCurrentLeftOut(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1))

	got, err := m.ApplySwitch(context.Background(), rec("B", 1), TabRecord{URL: "about:blank"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, urls(got))
}

func TestPromote_MovesSelectedToFront(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2), rec("D", 3))

	got, err := m.Promote(context.Background(), rec("D", 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A", "B", "C"}, urls(got))
}

func TestMarkClosed(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1))
	ctx := context.Background()

	require.NoError(t, m.MarkClosed(ctx, "B"))
	require.NoError(t, m.MarkClosed(ctx, "missing"))

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ClosedUnknown, got[0].Closed)
	assert.Equal(t, ClosedYes, got[1].Closed)
}

func TestMarkClosed_LiveRecordSurvivesReconcile(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1), rec("C", 2))
	ctx := context.Background()
	require.NoError(t, m.MarkClosed(ctx, "B"))

	res, err := m.Reconcile(ctx, liveSet("A", "B", "C"))
	require.NoError(t, err)
	assert.Zero(t, res.Removed)

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, urls(got))
	assert.Equal(t, ClosedNo, got[1].Closed)
}

func TestClear(t *testing.T) {
	m, _ := newTestManager(t, rec("A", 0), rec("B", 1))
	require.NoError(t, m.Clear(context.Background()))

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

type failingStore struct{}

func (failingStore) LoadHistory(ctx context.Context) ([]TabRecord, error) {
	return nil, errors.New("disk gone")
}

func (failingStore) SaveHistory(ctx context.Context, records []TabRecord) error {
	return errors.New("disk gone")
}

func TestManager_WrapsStoreErrors(t *testing.T) {
	m := NewManager(failingStore{}, nil, DefaultReconcilePolicy(), nil)

	_, err := m.Upsert(context.Background(), TabRecord{URL: "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load history")

	err = m.Clear(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save history")
}
