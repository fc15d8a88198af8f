package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from a YAML file with environment variable
// expansion and validation
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Read the raw file so ${VAR} references can be expanded before parsing
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	expanded := os.ExpandEnv(string(raw))

	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	// Environment variables override file values, e.g.
	// CRYPTO_BACKTEST_DATABASE_HOST overrides database.host
	v.SetEnvPrefix("CRYPTO_BACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Optionally overlay secrets from AWS Secrets Manager
	if err := applySecrets(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply secrets: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crypto-backtest")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("broker.db", 0)
	v.SetDefault("broker.request_topic", "backtest_requests")
	v.SetDefault("broker.result_topic", "backtest_results")
	v.SetDefault("broker.consumer_group", "backtest-workers")
	v.SetDefault("broker.poll_timeout_seconds", 1)

	v.SetDefault("tracking.enabled", true)
	v.SetDefault("tracking.experiment_name", "crypto-backtests")
	v.SetDefault("tracking.timeout_seconds", 10)
	v.SetDefault("tracking.max_retries", 3)
	v.SetDefault("tracking.rate_limit", 10.0)

	v.SetDefault("evaluator.risk_free_rate", 0.0)
	v.SetDefault("evaluator.bar_cache_ttl_seconds", 300)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.redispatch_cron", "0 0 * * *")
	v.SetDefault("scheduler.staleness_minutes", 60)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}
