package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/tabcycle/internal/app"
	"github.com/runnerr0/tabcycle/internal/cycle"
	"github.com/runnerr0/tabcycle/internal/history"
	"github.com/runnerr0/tabcycle/internal/tui"
)

type reportJSON struct {
	Instance string `json:"instance"`
	URL      string `json:"url"`
	Recorded bool   `json:"recorded"`
}

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("report requires --url")
	}
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	recorded, err := a.Controller(c.Instance).Report(context.Background(), cycle.SelfReport{
		URL:          c.URL,
		Title:        c.Title,
		PositionHint: c.Index,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(reportJSON{Instance: c.Instance, URL: c.URL, Recorded: recorded})
	}
	if recorded {
		fmt.Printf("Recorded %s for instance %s\n", c.URL, c.Instance)
	} else {
		fmt.Printf("Ignored %s (excluded)\n", c.URL)
	}
	return nil
}

// resume points a freshly built controller at the page currently in front:
// the --current url when given, else the head of history.
func resume(ctx context.Context, a *app.App, ctl *cycle.Controller, currentURL string) error {
	records, err := a.History(ctx)
	if err != nil {
		return err
	}
	if currentURL == "" {
		if len(records) > 0 {
			ctl.Resume(records[0])
		}
		return nil
	}
	if i := history.IndexOf(records, currentURL); i >= 0 {
		ctl.Resume(records[i])
		return nil
	}
	ctl.Resume(history.TabRecord{URL: currentURL, PositionHint: history.NoPosition})
	return nil
}

// Execute implements the go-flags Commander interface for PreviousCommand.
func (c *PreviousCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	ctl := a.Controller(c.Instance)
	if err := resume(ctx, a, ctl, c.Current); err != nil {
		return err
	}

	rec, err := ctl.SwitchPrevious(ctx)
	if werr := waitRetry(ctx, a, ctl); werr != nil {
		slog.Warn("activation retry did not finish", "error", werr)
	}
	if errors.Is(err, history.ErrNothingToSwitch) {
		if wantJSON(c.globals) {
			return printJSON(map[string]any{"switched": false})
		}
		fmt.Println("No previous tab to switch to.")
		return nil
	}
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{"switched": true, "record": rec})
	}
	fmt.Printf("Switched to %s\n", describe(*rec))
	return nil
}

// Execute implements the go-flags Commander interface for CycleCommand.
func (c *CycleCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, false)
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	ctl := a.Controller(c.Instance)
	if err := resume(ctx, a, ctl, ""); err != nil {
		return err
	}

	rec, err := tui.Run(ctx, ctl, c.Reverse)
	if err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(map[string]any{"switched": rec != nil, "record": rec})
	}
	if rec != nil {
		fmt.Printf("Switched to %s\n", describe(*rec))
	}
	return nil
}

// Execute implements the go-flags Commander interface for SwitchCommand.
func (c *SwitchCommand) Execute(args []string) error {
	if c.Title == "" {
		return fmt.Errorf("switch requires --title")
	}
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	if err := a.SwitchToTitle(context.Background(), c.Title); err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(map[string]any{"title": c.Title, "issued": true})
	}
	fmt.Printf("Switch to %q issued\n", c.Title)
	return nil
}

// waitRetry keeps the process alive until a scheduled activation retry has
// run, bounded by the retry delay plus a grace period.
func waitRetry(ctx context.Context, a *app.App, ctl *cycle.Controller) error {
	limit := time.Duration(a.Config().Cycle.RetryDelayMS)*time.Millisecond + 5*time.Second
	wctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	return ctl.Wait(wctx)
}

func verbose(globals *GlobalFlags) bool {
	return globals != nil && globals.Verbose
}

func describe(rec history.TabRecord) string {
	if rec.Title == "" {
		return rec.URL
	}
	return fmt.Sprintf("%s (%s)", rec.Title, rec.URL)
}
