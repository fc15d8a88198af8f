// Package main applies the pipeline database schema.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/config"
	"github.com/yourusername/crypto-backtest/internal/database"
	"github.com/yourusername/crypto-backtest/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to config file")
		timeout    = flag.Duration("timeout", 2*time.Minute, "Migration timeout")
	)
	flag.Parse()

	bootLog := logrus.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLog.Fatalf("Failed to load config: %v", err)
	}

	log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Info("Schema migration applied")
}
