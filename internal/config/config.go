// Package config provides configuration management for the backtest pipeline.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Broker    BrokerConfig    `mapstructure:"broker" validate:"required"`
	Tracking  TrackingConfig  `mapstructure:"tracking" validate:"required"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"required,gt=0"`
}

// BrokerConfig represents the Redis Streams broker configuration
type BrokerConfig struct {
	Addr               string `mapstructure:"addr" validate:"required"`
	Password           string `mapstructure:"password"`
	DB                 int    `mapstructure:"db" validate:"gte=0"`
	RequestTopic       string `mapstructure:"request_topic" validate:"required"`
	ResultTopic        string `mapstructure:"result_topic" validate:"required"`
	ConsumerGroup      string `mapstructure:"consumer_group" validate:"required"`
	ConsumerName       string `mapstructure:"consumer_name"`
	PollTimeoutSeconds int    `mapstructure:"poll_timeout_seconds" validate:"required,gt=0"`
}

// TrackingConfig represents the experiment tracking (MLflow) configuration
type TrackingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	URL            string  `mapstructure:"url" validate:"required,url"`
	ExperimentName string  `mapstructure:"experiment_name" validate:"required"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries     int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
}

// EvaluatorConfig represents evaluation and simulation configuration
type EvaluatorConfig struct {
	RiskFreeRate       float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	BarCacheTTLSeconds int     `mapstructure:"bar_cache_ttl_seconds" validate:"required,gt=0"`
}

// BarCacheTTL returns the bar window cache lifetime as a duration
func (c *EvaluatorConfig) BarCacheTTL() time.Duration {
	return time.Duration(c.BarCacheTTLSeconds) * time.Second
}

// SchedulerConfig represents the stale-request redispatch schedule
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	RedispatchCron   string `mapstructure:"redispatch_cron"`
	StalenessMinutes int    `mapstructure:"staleness_minutes" validate:"omitempty,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// PollTimeout returns the consumer poll block interval as a duration
func (c *BrokerConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

// Staleness returns the redispatch grace period as a duration
func (c *SchedulerConfig) Staleness() time.Duration {
	return time.Duration(c.StalenessMinutes) * time.Minute
}
