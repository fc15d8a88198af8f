package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/crypto-backtest/internal/database"
	"github.com/yourusername/crypto-backtest/internal/models"
)

const strategyResultColumns = `id, backtest_id, strategy_name, total_return,
	number_of_trades, winning_trades, losing_trades, max_drawdown, sharpe_ratio,
	score, is_best, created_at`

// PostgresStrategyResultRepository implements StrategyResultRepository for PostgreSQL
type PostgresStrategyResultRepository struct {
	db *database.DB
}

// NewPostgresStrategyResultRepository creates a new strategy result repository
func NewPostgresStrategyResultRepository(db *database.DB) StrategyResultRepository {
	return &PostgresStrategyResultRepository{db: db}
}

// SaveBatch inserts all results for one backtest atomically. Either every row
// lands or none does, so a partially evaluated backtest never becomes visible.
func (r *PostgresStrategyResultRepository) SaveBatch(ctx context.Context, results []*models.StrategyResult) error {
	if len(results) == 0 {
		return fmt.Errorf("no strategy results to save")
	}

	query := `
		INSERT INTO strategy_results (
			backtest_id, strategy_name, total_return, number_of_trades,
			winning_trades, losing_trades, max_drawdown, sharpe_ratio, score, is_best
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, result := range results {
			err := tx.QueryRow(ctx, query,
				result.BacktestID, result.StrategyName, result.TotalReturn, result.NumberOfTrades,
				result.WinningTrades, result.LosingTrades, result.MaxDrawdown, result.SharpeRatio,
				result.Score, result.IsBest,
			).Scan(&result.ID, &result.CreatedAt)
			if err != nil {
				return mapConstraintError(err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return err
		}
		return fmt.Errorf("failed to save strategy results: %w", err)
	}
	return nil
}

// CountByBacktest returns the number of stored results for a backtest
func (r *PostgresStrategyResultRepository) CountByBacktest(ctx context.Context, backtestID int64) (int, error) {
	var count int
	err := r.db.GetPool().QueryRow(ctx,
		"SELECT COUNT(*) FROM strategy_results WHERE backtest_id = $1", backtestID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count strategy results: %w", err)
	}
	return count, nil
}

// GetByBacktest retrieves all results for a backtest ordered by descending score
func (r *PostgresStrategyResultRepository) GetByBacktest(ctx context.Context, backtestID int64) ([]*models.StrategyResult, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM strategy_results
		WHERE backtest_id = $1
		ORDER BY score DESC, strategy_name
	`, strategyResultColumns)

	rows, err := r.db.GetPool().Query(ctx, query, backtestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy results: %w", err)
	}
	defer rows.Close()

	var results []*models.StrategyResult
	for rows.Next() {
		result := &models.StrategyResult{}
		if err := rows.Scan(
			&result.ID, &result.BacktestID, &result.StrategyName, &result.TotalReturn,
			&result.NumberOfTrades, &result.WinningTrades, &result.LosingTrades,
			&result.MaxDrawdown, &result.SharpeRatio, &result.Score, &result.IsBest,
			&result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan strategy result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// GetBest retrieves the winning result for a backtest
func (r *PostgresStrategyResultRepository) GetBest(ctx context.Context, backtestID int64) (*models.StrategyResult, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM strategy_results
		WHERE backtest_id = $1 AND is_best
	`, strategyResultColumns)

	result := &models.StrategyResult{}
	err := r.db.GetPool().QueryRow(ctx, query, backtestID).Scan(
		&result.ID, &result.BacktestID, &result.StrategyName, &result.TotalReturn,
		&result.NumberOfTrades, &result.WinningTrades, &result.LosingTrades,
		&result.MaxDrawdown, &result.SharpeRatio, &result.Score, &result.IsBest,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no best result for backtest %d", models.ErrNotFound, backtestID)
		}
		return nil, fmt.Errorf("failed to get best strategy result: %w", err)
	}
	return result, nil
}
