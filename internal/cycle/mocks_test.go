package cycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/history"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Activate(ctx context.Context, token activation.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Live(ctx context.Context) (map[string]*history.TabRecord, error) {
	args := m.Called(ctx)
	if live, ok := args.Get(0).(map[string]*history.TabRecord); ok {
		return live, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, instanceID string, rec history.TabRecord) error {
	args := m.Called(ctx, instanceID, rec)
	return args.Error(0)
}

// blockingRegistry holds Live until released or the context ends.
type blockingRegistry struct {
	called  chan struct{}
	release chan struct{}
	live    map[string]*history.TabRecord
}

func newBlockingRegistry(live map[string]*history.TabRecord) *blockingRegistry {
	return &blockingRegistry{
		called:  make(chan struct{}, 1),
		release: make(chan struct{}),
		live:    live,
	}
}

func (r *blockingRegistry) Live(ctx context.Context) (map[string]*history.TabRecord, error) {
	r.called <- struct{}{}
	select {
	case <-r.release:
		return r.live, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fakeClock fires AfterFunc callbacks only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every timer that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}
