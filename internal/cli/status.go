package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/runnerr0/tabcycle/internal/app"
	"github.com/runnerr0/tabcycle/internal/config"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string      `json:"version"`
	DatabasePath      string      `json:"database_path,omitempty"`
	DatabaseSizeBytes int64       `json:"database_size_bytes,omitempty"`
	DaemonAddr        string      `json:"daemon_addr"`
	DaemonRunning     bool        `json:"daemon_running"`
	Status            *app.Status `json:"status"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	a, done, err := openApp(c.globals, c.app, verbose(c.globals))
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithApp(a)
}

func (c *StatusCommand) executeWithApp(a *app.App) error {
	st, err := a.Status(context.Background())
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	cfg := a.Config()
	out := statusJSON{
		Version:       c.version,
		DaemonAddr:    cfg.DaemonAddr(),
		DaemonRunning: checkDaemon(cfg.DaemonAddr()),
		Status:        st,
	}
	if usesSQLite(cfg) {
		if path, err := cfg.DBPath(); err == nil {
			out.DatabasePath = path
			out.DatabaseSizeBytes = getDatabaseSize(path)
		}
	}

	if wantJSON(c.globals) {
		return printJSON(out)
	}
	return c.printStatusHuman(out)
}

func (c *StatusCommand) printStatusHuman(out statusJSON) error {
	st := out.Status
	fmt.Println("tabcycle Status")
	fmt.Println("===============")
	fmt.Printf("Version:       %s\n", out.Version)
	if out.DatabasePath != "" {
		fmt.Printf("Database:      %s (%s)\n", out.DatabasePath, formatBytes(out.DatabaseSizeBytes))
		if st.SchemaVersion > 0 {
			fmt.Printf("Schema:        v%d\n", st.SchemaVersion)
		}
	}
	fmt.Printf("History:       %d entries (%s)\n", st.HistoryEntries, st.HistoryBackend)
	if st.HistoryUpdatedAt != nil {
		fmt.Printf("Updated:       %s\n", st.HistoryUpdatedAt.Local().Format(time.DateTime))
	}
	if st.RegistryError != "" {
		fmt.Printf("Registry:      unavailable (%s): %s\n", st.RegistryBackend, st.RegistryError)
	} else {
		fmt.Printf("Registry:      %d live instance(s) (%s)\n", st.LiveInstances, st.RegistryBackend)
	}
	fmt.Printf("Activation:    %s\n", st.ActivationBackend)

	fmt.Println()
	fmt.Println("Reconcile thresholds:")
	fmt.Printf("  min live urls       %d\n", st.Policy.MinLiveURLs)
	fmt.Printf("  min history length  %d\n", st.Policy.MinHistoryLen)
	fmt.Printf("  max removal ratio   %.2f\n", st.Policy.MaxRemovalRatio)

	fmt.Println()
	if out.DaemonRunning {
		fmt.Printf("Daemon:        running on %s\n", out.DaemonAddr)
	} else {
		fmt.Println("Daemon:        not running")
	}
	return nil
}

func usesSQLite(cfg *config.Config) bool {
	return cfg.History.Backend == config.BackendSQLite || cfg.Registry.Backend == config.BackendSQLite
}

// getDatabaseSize returns the database file size in bytes, or 0 when the
// file does not exist yet.
func getDatabaseSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// checkDaemon attempts an HTTP GET to the daemon health endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(addr string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
