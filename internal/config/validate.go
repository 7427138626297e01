package config

import (
	"errors"
	"fmt"
	"strings"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendCDP    = "cdp"

	ActivationDeepLink = "deeplink"
	ActivationCDP      = "cdp"
	ActivationDryRun   = "dryrun"
)

var (
	historyBackends    = []string{BackendSQLite, BackendRedis, BackendMemory}
	registryBackends   = []string{BackendSQLite, BackendRedis, BackendCDP}
	activationBackends = []string{ActivationDeepLink, ActivationCDP, ActivationDryRun}
	logLevels          = []string{"debug", "info", "warn", "error"}
)

// Validate reports every problem in cfg at once.
func (c *Config) Validate() error {
	var errs []error

	check := func(field, value string, allowed []string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	check("history.backend", c.History.Backend, historyBackends)
	check("registry.backend", c.Registry.Backend, registryBackends)
	check("activation.backend", c.Activation.Backend, activationBackends)
	check("logging.level", strings.ToLower(c.Logging.Level), logLevels)

	if c.History.Key == "" {
		errs = append(errs, errors.New("history.key: must not be empty"))
	}
	if r := c.Reconcile.MaxRemovalRatio; r <= 0 || r > 1 {
		errs = append(errs, fmt.Errorf("reconcile.max_removal_ratio: %v outside (0, 1]", r))
	}
	if c.Reconcile.MinLiveURLs < 0 || c.Reconcile.MinHistoryLen < 0 {
		errs = append(errs, errors.New("reconcile: thresholds must not be negative"))
	}

	for _, d := range []struct {
		field string
		value int
	}{
		{"cycle.open_debounce_ms", c.Cycle.OpenDebounceMS},
		{"cycle.double_press_ms", c.Cycle.DoublePressMS},
		{"cycle.retry_delay_ms", c.Cycle.RetryDelayMS},
		{"cycle.switch_settle_ms", c.Cycle.SwitchSettleMS},
		{"cycle.registry_timeout_ms", c.Cycle.RegistryTimeoutMS},
		{"registry.stale_after_seconds", c.Registry.StaleAfterSeconds},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", d.field))
		}
	}

	if c.History.Backend == BackendRedis || c.Registry.Backend == BackendRedis {
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url: required by the redis backend"))
		}
	}

	return errors.Join(errs...)
}
