package cli

import "github.com/runnerr0/tabcycle/internal/app"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ReportCommand records a page visit for an instance.
type ReportCommand struct {
	Instance string `long:"instance" description:"Page instance id" default:"cli"`
	URL      string `long:"url" description:"Page url (required)"`
	Title    string `long:"title" description:"Page title"`
	Index    int    `long:"index" description:"Tab position, -1 when unknown" default:"-1"`

	globals *GlobalFlags
	version string
	app     *app.App // injectable for testing; nil means build from config
}

// PreviousCommand activates the most recently used other tab.
type PreviousCommand struct {
	Instance string `long:"instance" description:"Page instance id" default:"cli"`
	Current  string `long:"current" description:"Url of the page in front (default: head of history)"`

	globals *GlobalFlags
	version string
	app     *app.App
}

// CycleCommand runs the terminal preview picker.
type CycleCommand struct {
	Instance string `long:"instance" description:"Page instance id" default:"cli"`
	Reverse  bool   `long:"reverse" description:"Start on the oldest entry"`

	globals *GlobalFlags
	version string
	app     *app.App
}

// HistoryCommand shows the tab history.
type HistoryCommand struct {
	Limit int `long:"limit" description:"Maximum entries, 0 for all" default:"0"`

	globals *GlobalFlags
	version string
	app     *app.App
}

// ClearCommand deletes the tab history after a safety confirmation.
type ClearCommand struct {
	All   bool `long:"all" description:"Required flag to confirm clear intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	app     *app.App
}

// CleanupCommand reconciles history against the registry.
type CleanupCommand struct {
	globals *GlobalFlags
	version string
	app     *app.App
}

// DiscoverCommand merges registry tabs missing from history.
type DiscoverCommand struct {
	globals *GlobalFlags
	version string
	app     *app.App
}

// InstancesCommand lists registry entries.
type InstancesCommand struct {
	globals *GlobalFlags
	version string
	app     *app.App
}

// CheckURLCommand tests a url against the exclusion rules.
type CheckURLCommand struct {
	Args struct {
		URL string `positional-arg-name:"url" description:"Url to check"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
	app     *app.App
}

// SwitchCommand focuses a tab by title.
type SwitchCommand struct {
	Title string `long:"title" description:"Tab title (required)"`

	globals *GlobalFlags
	version string
	app     *app.App
}

// ServeCommand starts the HTTP daemon.
type ServeCommand struct {
	Host     string `long:"host" description:"Override daemon host"`
	Port     int    `long:"port" description:"Override daemon port"`
	LogLevel string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows history size and a registry and configuration summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	app     *app.App
}
