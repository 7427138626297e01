package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/cdp"
	"github.com/runnerr0/tabcycle/internal/config"
	"github.com/runnerr0/tabcycle/internal/history"
	"github.com/runnerr0/tabcycle/internal/storage"
)

// Open builds an App from cfg, connecting every backend it names. Backends
// named more than once share one connection.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &backendSet{cfg: cfg, logger: logger}
	comps, err := b.components()
	if err != nil {
		b.closeAll()
		return nil, err
	}

	a, err := Assemble(cfg, comps, logger)
	if err != nil {
		b.closeAll()
		return nil, err
	}
	return a, nil
}

type backendSet struct {
	cfg    *config.Config
	logger *slog.Logger

	sqlite  *storage.SQLiteStore
	redis   *storage.RedisStore
	browser *cdp.Browser
	closers []io.Closer
}

func (b *backendSet) storeOptions() storage.Options {
	return storage.Options{
		HistoryKey: b.cfg.History.Key,
		StaleAfter: time.Duration(b.cfg.Registry.StaleAfterSeconds) * time.Second,
	}
}

func (b *backendSet) sqliteStore() (*storage.SQLiteStore, error) {
	if b.sqlite != nil {
		return b.sqlite, nil
	}
	path, err := b.cfg.DBPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s, err := storage.Open(path, b.storeOptions())
	if err != nil {
		return nil, err
	}
	b.logger.Debug("opened sqlite store", "path", path)
	b.sqlite = s
	b.closers = append(b.closers, s)
	return s, nil
}

func (b *backendSet) redisStore() (*storage.RedisStore, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	s, err := storage.NewRedisStore(b.cfg.Redis.URL, b.cfg.Redis.KeyPrefix, b.storeOptions())
	if err != nil {
		return nil, err
	}
	b.redis = s
	b.closers = append(b.closers, s)
	return s, nil
}

func (b *backendSet) cdpBrowser() *cdp.Browser {
	if b.browser == nil {
		b.browser = cdp.New(b.cfg.CDP.Address, b.cfg.CDP.Port, b.logger)
		b.closers = append(b.closers, b.browser)
	}
	return b.browser
}

func (b *backendSet) components() (Components, error) {
	var comps Components

	switch b.cfg.History.Backend {
	case config.BackendSQLite:
		s, err := b.sqliteStore()
		if err != nil {
			return comps, err
		}
		comps.History = s
	case config.BackendRedis:
		s, err := b.redisStore()
		if err != nil {
			return comps, err
		}
		comps.History = s
	default:
		comps.History = history.NewMemoryStore()
	}

	switch b.cfg.Registry.Backend {
	case config.BackendSQLite:
		s, err := b.sqliteStore()
		if err != nil {
			return comps, err
		}
		comps.Registry, comps.Publisher = s, s
	case config.BackendRedis:
		s, err := b.redisStore()
		if err != nil {
			return comps, err
		}
		comps.Registry, comps.Publisher = s, s
	case config.BackendCDP:
		br := b.cdpBrowser()
		comps.Registry, comps.Publisher = br, br
	}

	switch b.cfg.Activation.Backend {
	case config.ActivationCDP:
		comps.Executor = b.cdpBrowser()
	case config.ActivationDryRun:
		comps.Executor = activation.NewDryRunExecutor(b.logger)
	default:
		comps.Executor = activation.NewDeepLinkExecutor(b.cfg.Activation.DeepLinkPrefix, b.cfg.Activation.Opener, b.logger)
	}

	comps.Closers = b.closers
	return comps, nil
}

func (b *backendSet) closeAll() {
	for _, c := range b.closers {
		_ = c.Close()
	}
}
