package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/history"
)

// State is the preview state of a controller.
type State int

const (
	StateClosed State = iota
	// StateOpening means a preview was requested and the registry round
	// trip has not settled yet.
	StateOpening
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Options holds the controller timings.
type Options struct {
	OpenDebounce    time.Duration
	DoublePress     time.Duration
	RetryDelay      time.Duration
	SwitchSettle    time.Duration
	RegistryTimeout time.Duration
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		OpenDebounce:    50 * time.Millisecond,
		DoublePress:     500 * time.Millisecond,
		RetryDelay:      300 * time.Millisecond,
		SwitchSettle:    time.Second,
		RegistryTimeout: 2 * time.Second,
	}
}

// Deps are the collaborators of a Controller. Registry and Publisher may be
// nil; without a registry a preview shows the persisted history as is.
type Deps struct {
	Manager   *history.Manager
	Registry  Registry
	Publisher Publisher
	Executor  activation.Executor
	Clock     Clock
	Logger    *slog.Logger
}

// SelfReport is a page announcing its own identity.
type SelfReport struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	PositionHint int       `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
}

// SessionView is a read-only picture of the preview.
type SessionView struct {
	State     string              `json:"state"`
	Selection int                 `json:"selection"`
	Start     int                 `json:"start"`
	Entries   []history.TabRecord `json:"entries"`
}

// Controller is the per-instance context: it owns the current page identity,
// the preview session and the gesture timing state. All methods are safe for
// concurrent use.
type Controller struct {
	instanceID string
	manager    *history.Manager
	registry   Registry
	publisher  Publisher
	executor   activation.Executor
	clock      Clock
	opts       Options
	logger     *slog.Logger

	mu          sync.Mutex
	state       State
	session     *Session
	generation  uint64
	current     history.TabRecord
	lastOpen    time.Time
	lastSwitch  time.Time
	settleUntil time.Time
	retry       Timer
	retryDone   chan struct{}
}

// NewController creates the controller for instanceID.
func NewController(instanceID string, deps Deps, opts Options) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Controller{
		instanceID: instanceID,
		manager:    deps.Manager,
		registry:   deps.Registry,
		publisher:  deps.Publisher,
		executor:   deps.Executor,
		clock:      clock,
		opts:       opts,
		logger:     logger.With("instance", instanceID),
	}
}

func (c *Controller) InstanceID() string { return c.instanceID }

// State returns the preview state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the last page this instance reported.
func (c *Controller) Current() history.TabRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Resume sets the current page without touching history or the registry.
// It is for a controller rebuilt in a process that never saw the report.
func (c *Controller) Resume(rec history.TabRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = rec
}

// Report records the instance's page. Excluded or url-less reports are
// ignored. Inside the settle window after a switch the page is remembered
// and published but history is left alone. History is written before the
// registry copy, and a failed publish is only logged.
func (c *Controller) Report(ctx context.Context, r SelfReport) (bool, error) {
	if r.URL == "" || c.manager.Excluded(r.URL) {
		c.logger.Debug("ignoring self-report", "url", r.URL)
		return false, nil
	}

	hint := r.PositionHint
	if hint < 0 {
		hint = history.NoPosition
	}
	rec := history.TabRecord{
		URL:          r.URL,
		Title:        r.Title,
		PositionHint: hint,
		LastAccessed: r.Timestamp,
		Closed:       history.ClosedNo,
	}

	c.mu.Lock()
	c.current = rec
	settling := c.clock.Now().Before(c.settleUntil)
	c.mu.Unlock()

	recorded := false
	if settling {
		c.logger.Debug("self-report inside switch settle window", "url", r.URL)
	} else {
		var err error
		if recorded, err = c.manager.Upsert(ctx, rec); err != nil {
			return false, err
		}
	}

	if err := c.publish(ctx, rec); err != nil {
		c.logger.Warn("registry publish failed", "url", r.URL, "error", err)
	}
	return recorded, nil
}

func (c *Controller) publish(ctx context.Context, rec history.TabRecord) error {
	if c.publisher == nil {
		return nil
	}
	if err := c.publisher.Publish(ctx, c.instanceID, rec); err != nil {
		return fmt.Errorf("publish self-report: %w", err)
	}
	return nil
}

// SwitchPrevious activates the most recent other page. A repeat within the
// double-press window, or an activation that fails outright, schedules one
// more activation after the retry delay.
func (c *Controller) SwitchPrevious(ctx context.Context) (*history.TabRecord, error) {
	c.mu.Lock()
	now := c.clock.Now()
	double := !c.lastSwitch.IsZero() && now.Sub(c.lastSwitch) < c.opts.DoublePress
	c.lastSwitch = now
	current := c.current
	c.mu.Unlock()

	records, err := c.manager.Load(ctx)
	if err != nil {
		return nil, err
	}
	target, ok := history.ResolvePrevious(records, current.URL)
	if !ok {
		return nil, history.ErrNothingToSwitch
	}

	token := activation.TokenFor(target)
	if err := c.executor.Activate(ctx, token); err != nil {
		c.logger.Warn("activation failed", "url", target.URL, "token", token.String(), "error", err)
		if markErr := c.manager.MarkClosed(ctx, target.URL); markErr != nil {
			c.logger.Warn("mark closed failed", "url", target.URL, "error", markErr)
		}
		c.scheduleRetry(token)
		return nil, fmt.Errorf("activate %s: %w", target.URL, err)
	}
	if double {
		c.logger.Debug("double press, retrying activation", "token", token.String())
		c.scheduleRetry(token)
	}

	if _, err := c.manager.ApplySwitch(ctx, target, current); err != nil {
		return &target, err
	}
	c.settle()
	c.logger.Info("switched to previous tab", "url", target.URL, "token", token.String())
	return &target, nil
}

func (c *Controller) settle() {
	c.mu.Lock()
	c.settleUntil = c.clock.Now().Add(c.opts.SwitchSettle)
	c.mu.Unlock()
}

func (c *Controller) scheduleRetry(token activation.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retry != nil && c.retry.Stop() {
		close(c.retryDone)
	}
	done := make(chan struct{})
	c.retryDone = done
	c.retry = c.clock.AfterFunc(c.opts.RetryDelay, func() {
		defer close(done)
		if err := c.executor.Activate(context.Background(), token); err != nil {
			c.logger.Warn("activation retry failed", "token", token.String(), "error", err)
		}
	})
}

// Wait blocks until the last scheduled activation retry has run or ctx is
// done. It returns at once when no retry was scheduled. A short-lived
// process calls it before exiting so the retry is not lost.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.retryDone
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open starts a preview. The registry is queried once to merge newly
// discovered pages and prune closed ones; if it fails the persisted history
// is used unchanged. Opens while a preview is opening or open, and opens
// inside the debounce window, are ignored.
func (c *Controller) Open(ctx context.Context, reverse bool) (State, error) {
	c.mu.Lock()
	if c.state != StateClosed {
		st := c.state
		c.mu.Unlock()
		return st, nil
	}
	now := c.clock.Now()
	if !c.lastOpen.IsZero() && now.Sub(c.lastOpen) < c.opts.OpenDebounce {
		c.mu.Unlock()
		c.logger.Debug("open debounced")
		return StateClosed, nil
	}
	c.lastOpen = now
	c.generation++
	gen := c.generation
	c.state = StateOpening
	c.mu.Unlock()

	snapshot, err := c.snapshot(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.Debug("discarding snapshot of cancelled preview")
		return c.state, nil
	}
	c.state = StateClosed
	if err != nil {
		return StateClosed, err
	}
	sess, ok := Begin(snapshot, reverse)
	if !ok {
		c.logger.Debug("nothing to preview", "entries", len(snapshot))
		return StateClosed, nil
	}
	c.session = sess
	c.state = StateOpen
	return StateOpen, nil
}

func (c *Controller) snapshot(ctx context.Context) ([]history.TabRecord, error) {
	if c.registry == nil {
		return c.manager.Load(ctx)
	}

	rctx, cancel := context.WithTimeout(ctx, c.opts.RegistryTimeout)
	live, err := c.registry.Live(rctx)
	cancel()
	if err != nil {
		c.logger.Warn("registry query failed, using persisted history", "error", err)
		return c.manager.Load(ctx)
	}

	if _, _, err := c.manager.MergeDiscovered(ctx, LiveRecords(live)); err != nil {
		return nil, err
	}
	res, err := c.manager.Reconcile(ctx, LiveURLs(live))
	if err != nil {
		return nil, err
	}
	return res.History, nil
}

// Advance steps the selection.
func (c *Controller) Advance(dir Direction) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return 0, ErrNotOpen
	}
	return c.session.Advance(dir), nil
}

// SelectAt jumps the selection to index.
func (c *Controller) SelectAt(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return ErrNotOpen
	}
	return c.session.SelectAt(index)
}

// Confirm closes the preview. When the selection moved, the selected page is
// activated and moved to the front of history; otherwise nothing happens
// and Confirm returns nil. A failed activation marks the page closed and
// leaves the order alone.
func (c *Controller) Confirm(ctx context.Context) (*history.TabRecord, error) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return nil, ErrNotOpen
	}
	sess := c.session
	c.closeLocked()
	c.mu.Unlock()

	if !sess.Changed() {
		return nil, nil
	}

	selected := sess.Selected()
	token := activation.TokenFor(selected)
	if err := c.executor.Activate(ctx, token); err != nil {
		c.logger.Warn("activation failed", "url", selected.URL, "token", token.String(), "error", err)
		if markErr := c.manager.MarkClosed(ctx, selected.URL); markErr != nil {
			c.logger.Warn("mark closed failed", "url", selected.URL, "error", markErr)
		}
		return nil, fmt.Errorf("activate %s: %w", selected.URL, err)
	}

	if _, err := c.manager.Promote(ctx, selected); err != nil {
		return &selected, err
	}
	c.settle()
	c.logger.Info("cycled to tab", "url", selected.URL, "token", token.String())
	return &selected, nil
}

// Cancel closes an open preview with no side effects.
func (c *Controller) Cancel() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateOpen {
		c.closeLocked()
	}
	return c.state
}

// HardCancel closes the preview in any state, including one still waiting
// on the registry, whose result is then dropped.
func (c *Controller) HardCancel() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.logger.Debug("preview hard-cancelled", "state", c.state.String())
	}
	c.closeLocked()
	return c.state
}

func (c *Controller) closeLocked() {
	c.session = nil
	c.state = StateClosed
	c.generation++
}

// View describes the current preview.
func (c *Controller) View() SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := SessionView{State: c.state.String(), Entries: []history.TabRecord{}}
	if c.session != nil {
		v.Selection = c.session.Selection()
		v.Start = c.session.Start()
		v.Entries = c.session.Snapshot()
	}
	return v
}
