package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/tabcycle/internal/app"
)

// Execute implements the go-flags Commander interface for InstancesCommand.
func (c *InstancesCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	list, err := a.Instances(context.Background())
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		if list == nil {
			list = []app.InstanceView{}
		}
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No instances registered.")
		return nil
	}
	for _, inst := range list {
		seen := "-"
		if inst.ReportedAt != nil {
			seen = inst.ReportedAt.Local().Format(time.DateTime)
		}
		if inst.Record == nil {
			fmt.Printf("%-24s %-19s (stale)\n", inst.ID, seen)
			continue
		}
		fmt.Printf("%-24s %-19s %s\n", inst.ID, seen, inst.Record.URL)
	}
	return nil
}

type checkURLJSON struct {
	URL      string `json:"url"`
	Excluded bool   `json:"excluded"`
	Pattern  string `json:"pattern,omitempty"`
}

// Execute implements the go-flags Commander interface for CheckURLCommand.
func (c *CheckURLCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	pattern, excluded := a.CheckURL(c.Args.URL)
	if wantJSON(c.globals) {
		return printJSON(checkURLJSON{URL: c.Args.URL, Excluded: excluded, Pattern: pattern})
	}
	if excluded {
		fmt.Printf("excluded: %s (matches %q)\n", c.Args.URL, pattern)
	} else {
		fmt.Printf("allowed: %s\n", c.Args.URL)
	}
	return nil
}
