// Package main provides the entry point for the backtest evaluation worker.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/broker"
	"github.com/yourusername/crypto-backtest/internal/config"
	"github.com/yourusername/crypto-backtest/internal/database"
	"github.com/yourusername/crypto-backtest/internal/health"
	"github.com/yourusername/crypto-backtest/internal/logger"
	"github.com/yourusername/crypto-backtest/internal/marketdata"
	"github.com/yourusername/crypto-backtest/internal/metrics"
	"github.com/yourusername/crypto-backtest/internal/repository"
	"github.com/yourusername/crypto-backtest/internal/scheduler"
	"github.com/yourusername/crypto-backtest/internal/service"
	"github.com/yourusername/crypto-backtest/internal/simulation"
	"github.com/yourusername/crypto-backtest/internal/tracking"
	"github.com/yourusername/crypto-backtest/internal/worker"
)

// Build information - set via ldflags
var (
	Version = "dev"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to config file")
		healthPort = flag.String("health-port", "8080", "Port for health check endpoints")
	)
	flag.Parse()

	bootLog := logrus.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLog.Fatalf("Failed to load config: %v", err)
	}

	log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	queue, err := broker.NewRedisQueue(ctx, &cfg.Broker, log)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer queue.Close()

	repos, err := repository.NewRepositories(db)
	if err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	metrics.InitRegistry()

	var tracker service.Tracker
	if cfg.Tracking.Enabled {
		tracker = tracking.NewClient(&cfg.Tracking, log)
	}

	evaluator := service.NewEvaluator(service.EvaluatorConfig{
		Requests:    repos.BacktestRequest,
		Results:     repos.StrategyResult,
		Bars:        marketdata.NewPostgresProvider(db, cfg.Evaluator.BarCacheTTL(), log),
		Simulator:   simulation.NewEngine(cfg.Evaluator.RiskFreeRate),
		Tracker:     tracker,
		Queue:       queue,
		ResultTopic: cfg.Broker.ResultTopic,
		Logger:      log,
	})

	loop := worker.NewLoop(queue, cfg.Broker.RequestTopic, evaluator, log)

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name + "-worker",
		Version:     Version,
		Port:        *healthPort,
		Logger:      log,
		DB:          db,
		Broker:      queue,
	})
	if err := healthServer.Start(ctx); err != nil {
		log.Fatalf("Failed to start health server: %v", err)
	}

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg, log)
	}

	if cfg.Scheduler.Enabled {
		dispatcher := service.NewDispatcher(queue, cfg.Broker.RequestTopic, log)
		redispatcher := scheduler.NewRedispatcher(repos.BacktestRequest, dispatcher, cfg.Scheduler.Staleness(), log)
		if err := redispatcher.Start(cfg.Scheduler.RedispatchCron); err != nil {
			log.Fatalf("Failed to start redispatch scheduler: %v", err)
		}
		defer redispatcher.Stop()
	}

	healthServer.SetReady(true)
	log.WithFields(logrus.Fields{
		"version": Version,
		"topic":   cfg.Broker.RequestTopic,
	}).Info("Backtest worker started")

	if err := loop.Run(ctx); err != nil {
		log.Fatalf("Consumer loop failed: %v", err)
	}
	log.Info("Backtest worker stopped")
}

func startMetricsServer(ctx context.Context, cfg *config.Config, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Metrics.Port).Info("Metrics server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Metrics server shutdown failed")
		}
	}()
}
