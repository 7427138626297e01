package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/tabcycle/internal/exclusion"
)

// ErrNothingToSwitch is returned when no other page is known.
var ErrNothingToSwitch = errors.New("no previous tab to switch to")

// Store persists the ordered history as a single blob. Implementations do
// not lock; callers accept that concurrent writers may overwrite each other.
type Store interface {
	LoadHistory(ctx context.Context) ([]TabRecord, error)
	SaveHistory(ctx context.Context, records []TabRecord) error
}

// Manager owns every mutation of the shared history. It never caches: each
// operation loads, modifies and saves in one short window.
type Manager struct {
	store  Store
	rules  *exclusion.RuleSet
	policy ReconcilePolicy
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager. A nil logger uses slog.Default().
func NewManager(store Store, rules *exclusion.RuleSet, policy ReconcilePolicy, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		rules:  rules,
		policy: policy,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source used for record timestamps.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Policy returns the reconciliation thresholds in effect.
func (m *Manager) Policy() ReconcilePolicy {
	return m.policy
}

// Excluded reports whether url is rejected by the exclusion rules.
func (m *Manager) Excluded(url string) bool {
	return m.rules.Excluded(url)
}

// Load returns the persisted history.
func (m *Manager) Load(ctx context.Context) ([]TabRecord, error) {
	records, err := m.store.LoadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return Clone(records), nil
}

func (m *Manager) save(ctx context.Context, records []TabRecord) error {
	if err := m.store.SaveHistory(ctx, records); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Upsert moves rec to the front, replacing any record with the same url.
// Excluded or url-less records are dropped silently and Upsert returns false.
// The id of an existing record is kept; a new record gets a fresh id.
func (m *Manager) Upsert(ctx context.Context, rec TabRecord) (bool, error) {
	if rec.URL == "" {
		return false, nil
	}
	if rule, ok := m.rules.Match(rec.URL); ok {
		m.logger.Debug("excluded self-report", "url", rec.URL, "pattern", rule.Pattern)
		return false, nil
	}

	records, err := m.Load(ctx)
	if err != nil {
		return false, err
	}

	if i := IndexOf(records, rec.URL); i >= 0 {
		rec.ID = records[i].ID
		records = append(records[:i], records[i+1:]...)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.LastAccessed.IsZero() {
		rec.LastAccessed = m.now()
	}

	records = append([]TabRecord{rec}, records...)
	if err := m.save(ctx, records); err != nil {
		return false, err
	}
	m.logger.Debug("history upserted", "url", rec.URL, "size", len(records))
	return true, nil
}

// Reconcile drops records whose url is not in live, unless the policy
// judges the live set untrustworthy. Survivors are never reordered.
func (m *Manager) Reconcile(ctx context.Context, live map[string]struct{}) (ReconcileResult, error) {
	records, err := m.Load(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}

	res := reconcile(records, live, m.policy)
	switch res.Skipped {
	case SkipNone:
	case SkipEmptyHistory:
		return res, nil
	default:
		m.logger.Warn("reconciliation skipped",
			"reason", res.Skipped,
			"live", len(live),
			"history", len(records),
		)
		return res, nil
	}

	if res.Removed > 0 || closedChanged(records, res.History) {
		if err := m.save(ctx, res.History); err != nil {
			return ReconcileResult{}, err
		}
	}
	if res.Removed > 0 {
		m.logger.Info("history reconciled", "removed", res.Removed, "kept", len(res.History))
	}
	return res, nil
}

func closedChanged(before, after []TabRecord) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i].Closed != after[i].Closed {
			return true
		}
	}
	return false
}

// MergeDiscovered prepends records known to the registry but missing from
// history, in discovery order. Excluded and duplicate urls are skipped. It
// returns the resulting history and how many records were added.
func (m *Manager) MergeDiscovered(ctx context.Context, found []TabRecord) ([]TabRecord, int, error) {
	records, err := m.Load(ctx)
	if err != nil {
		return nil, 0, err
	}

	known := URLSet(records)
	var added []TabRecord
	for _, r := range found {
		if r.URL == "" || m.rules.Excluded(r.URL) {
			continue
		}
		if _, ok := known[r.URL]; ok {
			continue
		}
		known[r.URL] = struct{}{}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		added = append(added, r)
	}

	if len(added) == 0 {
		return records, 0, nil
	}

	records = append(added, records...)
	if err := m.save(ctx, records); err != nil {
		return nil, 0, err
	}
	m.logger.Info("discovered tabs merged", "added", len(added), "size", len(records))
	return records, len(added), nil
}

// ApplySwitch persists the order after a resolved direct switch. The
// current record gets a refreshed LastAccessed; an excluded current page
// is left out.
func (m *Manager) ApplySwitch(ctx context.Context, resolved, current TabRecord) ([]TabRecord, error) {
	records, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}

	if current.URL != "" && m.rules.Excluded(current.URL) {
		current = TabRecord{}
	}
	if current.URL != "" {
		if i := IndexOf(records, current.URL); i >= 0 && current.ID == "" {
			current.ID = records[i].ID
		}
		if current.ID == "" {
			current.ID = uuid.NewString()
		}
		current.LastAccessed = m.now()
	}

	records = SwitchOrder(records, resolved, current)
	if err := m.save(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// Promote moves selected to the front of the persisted history.
func (m *Manager) Promote(ctx context.Context, selected TabRecord) ([]TabRecord, error) {
	records, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	records = Promote(records, selected)
	if err := m.save(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// MarkClosed flags url as presumed gone for display after a failed
// activation. Reconciliation decides from the live set alone and resets the
// flag on records that are still open. Unknown urls are ignored.
func (m *Manager) MarkClosed(ctx context.Context, url string) error {
	records, err := m.Load(ctx)
	if err != nil {
		return err
	}
	i := IndexOf(records, url)
	if i < 0 {
		return nil
	}
	records[i].Closed = ClosedYes
	return m.save(ctx, records)
}

// Clear empties the history.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.save(ctx, []TabRecord{}); err != nil {
		return err
	}
	m.logger.Info("history cleared")
	return nil
}
