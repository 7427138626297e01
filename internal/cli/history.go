package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/tabcycle/internal/history"
)

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	records, err := a.History(context.Background())
	if err != nil {
		return err
	}
	if c.Limit > 0 && len(records) > c.Limit {
		records = records[:c.Limit]
	}

	if wantJSON(c.globals) {
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("History is empty.")
		return nil
	}
	for i, r := range records {
		fmt.Printf("%3d  %-5s %-40s %s\n", i+1, positionLabel(r), truncate(r.Title, 40), r.URL)
	}
	return nil
}

func positionLabel(r history.TabRecord) string {
	switch {
	case r.Closed == history.ClosedYes:
		return "gone"
	case r.HasPosition():
		return fmt.Sprintf("#%d", r.PositionHint)
	default:
		return "-"
	}
}

// Execute implements the go-flags Commander interface for ClearCommand.
func (c *ClearCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("clear requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete the whole tab history.")
		fmt.Println()
		fmt.Print(`Type "CLEAR" to confirm: `)

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "CLEAR" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	if err := a.ClearHistory(context.Background()); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{"cleared": true})
	}
	fmt.Println("Cleared tab history.")
	return nil
}

// Execute implements the go-flags Commander interface for CleanupCommand.
func (c *CleanupCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	res, err := a.Cleanup(context.Background())
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(res)
	}
	if res.Skipped != history.SkipNone {
		fmt.Printf("Cleanup skipped: %s\n", res.Skipped)
	} else {
		fmt.Printf("Removed %d closed tab(s), %d kept.\n", res.Removed, res.Kept)
	}
	if res.PrunedInstances > 0 {
		fmt.Printf("Pruned %d stale instance(s).\n", res.PrunedInstances)
	}
	return nil
}

// Execute implements the go-flags Commander interface for DiscoverCommand.
func (c *DiscoverCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	added, err := a.Discover(context.Background())
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{"added": added})
	}
	fmt.Printf("Added %d tab(s) to history.\n", added)
	return nil
}
