// Package main provides the operator CLI for submitting and inspecting
// backtest requests.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/crypto-backtest/internal/broker"
	"github.com/yourusername/crypto-backtest/internal/config"
	"github.com/yourusername/crypto-backtest/internal/database"
	"github.com/yourusername/crypto-backtest/internal/logger"
	"github.com/yourusername/crypto-backtest/internal/models"
	"github.com/yourusername/crypto-backtest/internal/repository"
	"github.com/yourusername/crypto-backtest/internal/scheduler"
	"github.com/yourusername/crypto-backtest/internal/service"
)

// Build information - set via ldflags
var (
	Version = "dev"
)

var (
	configFile string
	appLogger  *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	queue      *broker.RedisQueue
	repos      *repository.Repositories
)

var rootCmd = &cobra.Command{
	Use:     "backtest",
	Short:   "Submit and inspect crypto backtest requests",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

var (
	submitName  string
	submitPair  string
	submitStart string
	submitEnd   string
	submitCash  string
	submitFee   string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Admit a backtest request and dispatch it to the worker queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <backtest-id>",
	Short: "Show the stored results for a backtest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid backtest id %q", args[0])
		}
		return runStatus(cmd.Context(), id)
	},
}

var redispatchCmd = &cobra.Command{
	Use:   "redispatch",
	Short: "Redispatch admitted requests that were never evaluated",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRedispatch(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "Path to configuration file")

	submitCmd.Flags().StringVar(&submitName, "name", "", "Backtest name")
	submitCmd.Flags().StringVar(&submitPair, "symbol", "", "Trading pair, e.g. BTC/USDT")
	submitCmd.Flags().StringVar(&submitStart, "start-date", "", "Window start (YYYY-MM-DD)")
	submitCmd.Flags().StringVar(&submitEnd, "end-date", "", "Window end (YYYY-MM-DD)")
	submitCmd.Flags().StringVar(&submitCash, "initial-cash", "10000", "Starting cash")
	submitCmd.Flags().StringVar(&submitFee, "fee-rate", "0.001", "Per-trade fee rate")
	submitCmd.MarkFlagRequired("name")
	submitCmd.MarkFlagRequired("symbol")
	submitCmd.MarkFlagRequired("start-date")
	submitCmd.MarkFlagRequired("end-date")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(redispatchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func setup(ctx context.Context) error {
	var err error
	cfg, err = config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	queue, err = broker.NewRedisQueue(ctx, &cfg.Broker, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	return nil
}

func teardown() {
	if queue != nil {
		queue.Close()
	}
	if db != nil {
		db.Close()
	}
}

func runSubmit(ctx context.Context) error {
	start, err := time.Parse("2006-01-02", submitStart)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", submitEnd)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	cash, err := decimal.NewFromString(submitCash)
	if err != nil {
		return fmt.Errorf("invalid initial cash: %w", err)
	}
	fee, err := decimal.NewFromString(submitFee)
	if err != nil {
		return fmt.Errorf("invalid fee rate: %w", err)
	}

	gate := service.NewGate(repos.BacktestRequest, appLogger)
	request, created, err := gate.Admit(ctx, service.AdmitParams{
		Name:        submitName,
		Symbol:      submitPair,
		StartDate:   start,
		EndDate:     end,
		InitialCash: cash,
		FeeRate:     fee,
	})
	if err != nil {
		return err
	}

	dispatcher := service.NewDispatcher(queue, cfg.Broker.RequestTopic, appLogger)
	line, err := finishSubmit(ctx, dispatcher, request, created)
	if err != nil {
		return err
	}
	fmt.Println(line)
	return nil
}

// finishSubmit dispatches newly admitted requests. A resubmission resolves to
// the stored row without re-queuing; the redispatch subcommand covers
// operator retries.
func finishSubmit(ctx context.Context, dispatcher *service.Dispatcher, request *models.BacktestRequest, created bool) (string, error) {
	if !created {
		return fmt.Sprintf("Backtest %d already exists", request.ID), nil
	}
	if err := dispatcher.Dispatch(ctx, request.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Submitted backtest %d (%s %s)", request.ID, request.Name, request.Symbol), nil
}

func runStatus(ctx context.Context, id int64) error {
	request, err := repos.BacktestRequest.GetByID(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Backtest %d: %s on %s, %s to %s\n",
		request.ID, request.Name, request.Symbol,
		request.StartDate.Format("2006-01-02"), request.EndDate.Format("2006-01-02"))

	results, err := repos.StrategyResult.GetByBacktest(ctx, id)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results yet")
		return nil
	}

	for _, r := range results {
		marker := " "
		if r.IsBest {
			marker = "*"
		}
		fmt.Printf("%s %-15s score=%.4f return=%.2f%% sharpe=%.2f drawdown=%.2f%% trades=%d\n",
			marker, r.StrategyName, r.Score, r.TotalReturn*100, r.SharpeRatio,
			r.MaxDrawdown*100, r.NumberOfTrades)
	}
	return nil
}

func runRedispatch(ctx context.Context) error {
	dispatcher := service.NewDispatcher(queue, cfg.Broker.RequestTopic, appLogger)
	redispatcher := scheduler.NewRedispatcher(repos.BacktestRequest, dispatcher, cfg.Scheduler.Staleness(), appLogger)

	count, err := redispatcher.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Redispatched %d stale request(s)\n", count)
	return nil
}
