// Package repository provides data access interfaces and PostgreSQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/yourusername/crypto-backtest/internal/models"
)

// BacktestRequestRepository defines operations for backtest request persistence
type BacktestRequestRepository interface {
	// Create inserts a new request and populates its ID. A natural key
	// collision is reported as models.ErrDuplicateKey.
	Create(ctx context.Context, request *models.BacktestRequest) error
	// GetByID retrieves a request by primary key
	GetByID(ctx context.Context, id int64) (*models.BacktestRequest, error)
	// GetByNaturalKey retrieves a request by its unique
	// (name, symbol, start_date, end_date) tuple
	GetByNaturalKey(ctx context.Context, name, symbol string, startDate, endDate time.Time) (*models.BacktestRequest, error)
	// ListUnevaluated retrieves requests created before cutoff that have no
	// strategy results yet
	ListUnevaluated(ctx context.Context, cutoff time.Time) ([]*models.BacktestRequest, error)
}

// StrategyResultRepository defines operations for strategy result persistence
type StrategyResultRepository interface {
	// SaveBatch inserts all results for one backtest in a single transaction
	SaveBatch(ctx context.Context, results []*models.StrategyResult) error
	// CountByBacktest returns the number of stored results for a backtest
	CountByBacktest(ctx context.Context, backtestID int64) (int, error)
	// GetByBacktest retrieves all results for a backtest ordered by score
	GetByBacktest(ctx context.Context, backtestID int64) ([]*models.StrategyResult, error)
	// GetBest retrieves the winning result for a backtest
	GetBest(ctx context.Context, backtestID int64) (*models.StrategyResult, error)
}
