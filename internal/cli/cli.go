package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Report    *ReportCommand
	Previous  *PreviousCommand
	Cycle     *CycleCommand
	History   *HistoryCommand
	Clear     *ClearCommand
	Cleanup   *CleanupCommand
	Discover  *DiscoverCommand
	Instances *InstancesCommand
	CheckURL  *CheckURLCommand
	Switch    *SwitchCommand
	Serve     *ServeCommand
	Status    *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "tabcycle"
	parser.LongDescription = "Most-recently-used tab switching: previous tab, hold-to-preview cycling and tab history upkeep."

	cmds := &commands{
		Report:    &ReportCommand{globals: &globals, version: version},
		Previous:  &PreviousCommand{globals: &globals, version: version},
		Cycle:     &CycleCommand{globals: &globals, version: version},
		History:   &HistoryCommand{globals: &globals, version: version},
		Clear:     &ClearCommand{globals: &globals, version: version},
		Cleanup:   &CleanupCommand{globals: &globals, version: version},
		Discover:  &DiscoverCommand{globals: &globals, version: version},
		Instances: &InstancesCommand{globals: &globals, version: version},
		CheckURL:  &CheckURLCommand{globals: &globals, version: version},
		Switch:    &SwitchCommand{globals: &globals, version: version},
		Serve:     &ServeCommand{globals: &globals, version: version},
		Status:    &StatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("report", "Report the page an instance shows", "Record a page visit for an instance: moves it to the front of history and publishes it to the registry.", cmds.Report)
	parser.AddCommand("previous", "Switch to the previous tab", "Activate the most recently used other tab.", cmds.Previous)
	parser.AddCommand("cycle", "Pick a recent tab interactively", "Open the recent-tab preview in the terminal and switch to the chosen tab.", cmds.Cycle)
	parser.AddCommand("history", "Show tab history", "Show the tab history, most recent first.", cmds.History)
	parser.AddCommand("clear", "Clear tab history", "Delete the whole tab history. Destructive operation with safety prompt.", cmds.Clear)
	parser.AddCommand("cleanup", "Drop closed tabs from history", "Prune stale registry entries and reconcile history against the live tabs.", cmds.Cleanup)
	parser.AddCommand("discover", "Add open tabs missing from history", "Merge tabs known to the registry but missing from history.", cmds.Discover)
	parser.AddCommand("instances", "List page instances", "List the page instances in the live-tab registry.", cmds.Instances)
	parser.AddCommand("check-url", "Check a url against the exclusion rules", "Report whether a url is excluded from history and which rule matched.", cmds.CheckURL)
	parser.AddCommand("switch", "Switch to a tab by title", "Ask the activation backend to focus the tab with the given title.", cmds.Switch)
	parser.AddCommand("serve", "Start the tabcycle daemon", "Start the local HTTP daemon page instances report to.", cmds.Serve)
	parser.AddCommand("status", "Show history and registry status", "Show history size, live instances, backends and reconciliation thresholds.", cmds.Status)

	return parser, &globals, cmds
}

// Run is the main entry point for the tabcycle CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("tabcycle %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
