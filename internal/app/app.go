// Package app assembles the configured stores, registry and executor and
// hands out one cycle controller per page instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/config"
	"github.com/runnerr0/tabcycle/internal/cycle"
	"github.com/runnerr0/tabcycle/internal/exclusion"
	"github.com/runnerr0/tabcycle/internal/history"
	"github.com/runnerr0/tabcycle/internal/storage"
)

// ErrRegistryUnavailable wraps failures to read the live-tab registry.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// ErrUnknownInstance is returned when withdrawing an instance the registry
// does not hold.
var ErrUnknownInstance = errors.New("instance not registered")

func registryErr(err error) error {
	return fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
}

// Components are the backends an App runs on.
type Components struct {
	History   history.Store
	Registry  cycle.Registry
	Publisher cycle.Publisher
	Executor  activation.Executor
	Clock     cycle.Clock
	Closers   []io.Closer
}

// App is the shared runtime behind the CLI and the daemon.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	rules    *exclusion.RuleSet
	manager  *history.Manager
	comps    Components
	cycleOpt cycle.Options

	mu          sync.Mutex
	controllers map[string]*cycle.Controller
}

// Assemble builds an App over already-constructed components.
func Assemble(cfg *config.Config, comps Components, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules, err := exclusion.Compile(cfg.Exclusion.Patterns)
	if err != nil {
		return nil, err
	}
	policy := history.ReconcilePolicy{
		MinLiveURLs:     cfg.Reconcile.MinLiveURLs,
		MinHistoryLen:   cfg.Reconcile.MinHistoryLen,
		MaxRemovalRatio: cfg.Reconcile.MaxRemovalRatio,
	}
	manager := history.NewManager(comps.History, rules, policy, logger)
	if comps.Clock != nil {
		manager.SetClock(comps.Clock.Now)
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		rules:       rules,
		manager:     manager,
		comps:       comps,
		cycleOpt:    CycleOptions(cfg.Cycle),
		controllers: make(map[string]*cycle.Controller),
	}, nil
}

// CycleOptions converts the configured millisecond timings.
func CycleOptions(c config.CycleConfig) cycle.Options {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return cycle.Options{
		OpenDebounce:    ms(c.OpenDebounceMS),
		DoublePress:     ms(c.DoublePressMS),
		RetryDelay:      ms(c.RetryDelayMS),
		SwitchSettle:    ms(c.SwitchSettleMS),
		RegistryTimeout: ms(c.RegistryTimeoutMS),
	}
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Manager() *history.Manager { return a.manager }

// Controller returns the controller for instanceID, creating it on first use.
func (a *App) Controller(instanceID string) *cycle.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.controllers[instanceID]; ok {
		return c
	}
	c := cycle.NewController(instanceID, cycle.Deps{
		Manager:   a.manager,
		Registry:  a.comps.Registry,
		Publisher: a.comps.Publisher,
		Executor:  a.comps.Executor,
		Clock:     a.comps.Clock,
		Logger:    a.logger,
	}, a.cycleOpt)
	a.controllers[instanceID] = c
	return c
}

// History returns the persisted history.
func (a *App) History(ctx context.Context) ([]history.TabRecord, error) {
	return a.manager.Load(ctx)
}

// ClearHistory empties the persisted history.
func (a *App) ClearHistory(ctx context.Context) error {
	return a.manager.Clear(ctx)
}

// CleanupResult reports one cleanup pass.
type CleanupResult struct {
	Removed         int    `json:"removed"`
	Kept            int    `json:"kept"`
	Skipped         string `json:"skipped,omitempty"`
	PrunedInstances int64  `json:"pruned_instances"`
}

type stalePruner interface {
	PruneStale(ctx context.Context) (int64, error)
}

// Cleanup drops stale registry entries, then reconciles history against
// the live pages.
func (a *App) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	if a.comps.Registry == nil {
		return res, fmt.Errorf("cleanup: no registry configured")
	}
	if p, ok := a.comps.Registry.(stalePruner); ok {
		n, err := p.PruneStale(ctx)
		if err != nil {
			return res, registryErr(err)
		}
		res.PrunedInstances = n
	}

	live, err := a.comps.Registry.Live(ctx)
	if err != nil {
		return res, registryErr(err)
	}
	rr, err := a.manager.Reconcile(ctx, cycle.LiveURLs(live))
	if err != nil {
		return res, err
	}
	res.Removed, res.Kept, res.Skipped = rr.Removed, len(rr.History), rr.Skipped
	return res, nil
}

// Discover merges pages known to the registry but missing from history.
func (a *App) Discover(ctx context.Context) (int, error) {
	if a.comps.Registry == nil {
		return 0, fmt.Errorf("discover: no registry configured")
	}
	live, err := a.comps.Registry.Live(ctx)
	if err != nil {
		return 0, registryErr(err)
	}
	_, added, err := a.manager.MergeDiscovered(ctx, cycle.LiveRecords(live))
	return added, err
}

// InstanceView is one registry entry as shown to users.
type InstanceView struct {
	ID         string             `json:"id"`
	Record     *history.TabRecord `json:"record,omitempty"`
	ReportedAt *time.Time         `json:"reported_at,omitempty"`
}

type instanceLister interface {
	Instances(ctx context.Context) ([]storage.Instance, error)
}

// Instances lists the registry ordered by instance id.
func (a *App) Instances(ctx context.Context) ([]InstanceView, error) {
	if a.comps.Registry == nil {
		return nil, fmt.Errorf("instances: no registry configured")
	}

	if l, ok := a.comps.Registry.(instanceLister); ok {
		list, err := l.Instances(ctx)
		if err != nil {
			return nil, registryErr(err)
		}
		out := make([]InstanceView, 0, len(list))
		for _, inst := range list {
			v := InstanceView{ID: inst.ID}
			if !inst.Stale {
				rec := inst.Record
				v.Record = &rec
			}
			if !inst.ReportedAt.IsZero() {
				at := inst.ReportedAt
				v.ReportedAt = &at
			}
			out = append(out, v)
		}
		return out, nil
	}

	live, err := a.comps.Registry.Live(ctx)
	if err != nil {
		return nil, registryErr(err)
	}
	ids := make([]string, 0, len(live))
	for id := range live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]InstanceView, 0, len(ids))
	for _, id := range ids {
		out = append(out, InstanceView{ID: id, Record: live[id]})
	}
	return out, nil
}

type withdrawer interface {
	Withdraw(ctx context.Context, instanceID string) error
}

// Withdraw forgets a closed page instance: its preview is hard-cancelled,
// its controller dropped and its registry entry removed. Registries that
// derive instances from the browser itself have nothing to remove.
func (a *App) Withdraw(ctx context.Context, instanceID string) error {
	a.mu.Lock()
	if c, ok := a.controllers[instanceID]; ok {
		c.HardCancel()
		delete(a.controllers, instanceID)
	}
	a.mu.Unlock()

	w, ok := a.comps.Registry.(withdrawer)
	if !ok {
		return nil
	}
	err := w.Withdraw(ctx, instanceID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("withdraw %s: %w", instanceID, ErrUnknownInstance)
	case err != nil:
		return registryErr(err)
	}
	a.logger.Info("instance withdrawn", "instance", instanceID)
	return nil
}

// CheckURL returns the first exclusion pattern matching url.
func (a *App) CheckURL(url string) (string, bool) {
	rule, ok := a.rules.Match(url)
	return rule.Pattern, ok
}

// SwitchToTitle asks the executor to focus the tab titled title.
func (a *App) SwitchToTitle(ctx context.Context, title string) error {
	if title == "" {
		return activation.ErrEmptyToken
	}
	return a.comps.Executor.Activate(ctx, activation.Token{Position: history.NoPosition, Title: title})
}

// Status summarizes the runtime.
type Status struct {
	HistoryEntries    int                     `json:"history_entries"`
	HistoryUpdatedAt  *time.Time              `json:"history_updated_at,omitempty"`
	SchemaVersion     int                     `json:"schema_version,omitempty"`
	LiveInstances     int                     `json:"live_instances"`
	RegistryError     string                  `json:"registry_error,omitempty"`
	HistoryBackend    string                  `json:"history_backend"`
	RegistryBackend   string                  `json:"registry_backend"`
	ActivationBackend string                  `json:"activation_backend"`
	Policy            history.ReconcilePolicy `json:"policy"`
}

type statser interface {
	GetStats(ctx context.Context) (*storage.Stats, error)
}

// Status reads history and registry counts. A registry failure is reported
// in the result rather than failing the call.
func (a *App) Status(ctx context.Context) (*Status, error) {
	records, err := a.manager.Load(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		HistoryEntries:    len(records),
		HistoryBackend:    a.cfg.History.Backend,
		RegistryBackend:   a.cfg.Registry.Backend,
		ActivationBackend: a.cfg.Activation.Backend,
		Policy:            a.manager.Policy(),
	}

	if s, ok := a.comps.History.(statser); ok {
		stats, err := s.GetStats(ctx)
		if err == nil {
			st.SchemaVersion = stats.SchemaVersion
			if !stats.HistoryUpdatedAt.IsZero() {
				at := stats.HistoryUpdatedAt
				st.HistoryUpdatedAt = &at
			}
		}
	}

	if a.comps.Registry != nil {
		live, err := a.comps.Registry.Live(ctx)
		if err != nil {
			st.RegistryError = err.Error()
		} else {
			for _, rec := range live {
				if rec != nil {
					st.LiveInstances++
				}
			}
		}
	}
	return st, nil
}

// Close releases every backend.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.comps.Closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
