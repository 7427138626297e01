package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ApplyEnv loads a .env file from the working directory if there is one and
// overrides cfg from TABCYCLE_* variables. Variables already set in the
// environment win over .env.
func ApplyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg.History.Backend = getEnvOrDefault("TABCYCLE_HISTORY_BACKEND", cfg.History.Backend)
	cfg.Registry.Backend = getEnvOrDefault("TABCYCLE_REGISTRY_BACKEND", cfg.Registry.Backend)
	cfg.Activation.Backend = getEnvOrDefault("TABCYCLE_ACTIVATION_BACKEND", cfg.Activation.Backend)
	cfg.Redis.URL = getEnvOrDefault("TABCYCLE_REDIS_URL", cfg.Redis.URL)
	cfg.CDP.Address = getEnvOrDefault("TABCYCLE_CDP_ADDRESS", cfg.CDP.Address)
	cfg.CDP.Port = getEnvIntOrDefault("TABCYCLE_CDP_PORT", cfg.CDP.Port)
	cfg.Daemon.Port = getEnvIntOrDefault("TABCYCLE_DAEMON_PORT", cfg.Daemon.Port)
	cfg.Logging.Level = getEnvOrDefault("TABCYCLE_LOG_LEVEL", cfg.Logging.Level)
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
