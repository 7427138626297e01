package config

import "github.com/runnerr0/tabcycle/internal/activation"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		History: HistoryConfig{
			Key:     "mruTabHistoryWithIndices",
			Backend: BackendSQLite,
		},
		Reconcile: ReconcileConfig{
			MinLiveURLs:     2,
			MinHistoryLen:   3,
			MaxRemovalRatio: 0.70,
		},
		Cycle: CycleConfig{
			OpenDebounceMS:    50,
			DoublePressMS:     500,
			RetryDelayMS:      300,
			SwitchSettleMS:    1000,
			RegistryTimeoutMS: 2000,
		},
		Registry: RegistryConfig{
			Backend:           BackendSQLite,
			StaleAfterSeconds: 120,
		},
		Activation: ActivationConfig{
			Backend:        ActivationDeepLink,
			DeepLinkPrefix: activation.DefaultDeepLinkPrefix,
			Opener:         "open",
		},
		Exclusion: ExclusionConfig{
			Patterns: DefaultExclusionPatterns(),
		},
		Storage: StorageConfig{
			Path:       "~/.config/tabcycle",
			SQLiteFile: "tabcycle.db",
		},
		Redis: RedisConfig{
			URL:       "redis://127.0.0.1:6379/0",
			KeyPrefix: "tabcycle",
		},
		CDP: CDPConfig{
			Address: "127.0.0.1",
			Port:    9222,
		},
		Daemon: DaemonConfig{
			Host: "127.0.0.1",
			Port: 8731,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "tabcycle.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// DefaultExclusionPatterns returns the url patterns that never enter
// history: worker contexts and internal or non-content schemes. Patterns are
// regular expressions matched case-insensitively, first match wins.
func DefaultExclusionPatterns() []string {
	return []string{
		// Worker contexts
		"service_worker",
		"sw_iframe",

		// Internal pages
		"^about:",
		"^chrome:",
		"^safari-extension:",

		// Non-content schemes
		"^data:",
		"^javascript:",
		"^blob:",
	}
}
