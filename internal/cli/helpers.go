package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/runnerr0/tabcycle/internal/app"
	"github.com/runnerr0/tabcycle/internal/config"
)

// loadConfig reads the config file named by --config, or the default one,
// and applies environment overrides.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globals != nil && globals.Config != "" {
		path, pathErr := config.ExpandPath(globals.Config)
		if pathErr != nil {
			return nil, pathErr
		}
		cfg, err = config.LoadOrCreateAt(path)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, err
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if globals != nil && globals.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger installs a text logger writing to the rotating log file and,
// when console is set, to stderr. The returned closer releases the file.
func setupLogger(cfg *config.Config, console bool) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	if console {
		writers = append(writers, os.Stderr)
	}

	var closer io.Closer = io.NopCloser(nil)
	path, err := cfg.LogPath()
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		logWriter := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, logWriter)
		closer = logWriter
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	h := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: parseLevel(cfg.Logging.Level)})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, closer, nil
}

// openApp returns injected when set; otherwise it loads the config, sets up
// logging and connects the configured backends. The release func must be
// called when the command is done.
func openApp(globals *GlobalFlags, injected *app.App, console bool) (*app.App, func(), error) {
	if injected != nil {
		return injected, func() {}, nil
	}

	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, nil, err
	}
	logger, logCloser, err := setupLogger(cfg, console)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.Open(cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			logger.Warn("close backends", "error", err)
		}
		logCloser.Close()
	}, nil
}

func wantJSON(globals *GlobalFlags) bool {
	return globals != nil && globals.JSON
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
