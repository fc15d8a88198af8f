package database

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so migration can run on every deploy.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS backtest_requests (
		id           BIGSERIAL PRIMARY KEY,
		name         TEXT NOT NULL,
		symbol       TEXT NOT NULL,
		start_date   DATE NOT NULL,
		end_date     DATE NOT NULL,
		initial_cash NUMERIC(18,2) NOT NULL,
		fee_rate     NUMERIC(8,6) NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT backtest_requests_natural_key UNIQUE (name, symbol, start_date, end_date)
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_results (
		id               BIGSERIAL PRIMARY KEY,
		backtest_id      BIGINT NOT NULL REFERENCES backtest_requests(id) ON DELETE CASCADE,
		strategy_name    TEXT NOT NULL,
		total_return     DOUBLE PRECISION NOT NULL,
		number_of_trades INTEGER NOT NULL,
		winning_trades   INTEGER NOT NULL,
		losing_trades    INTEGER NOT NULL,
		max_drawdown     DOUBLE PRECISION NOT NULL,
		sharpe_ratio     DOUBLE PRECISION NOT NULL,
		score            DOUBLE PRECISION NOT NULL,
		is_best          BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT strategy_results_backtest_strategy_key UNIQUE (backtest_id, strategy_name)
	)`,
	// At most one winner per backtest, enforced by the store itself.
	`CREATE UNIQUE INDEX IF NOT EXISTS strategy_results_one_best_idx
		ON strategy_results (backtest_id) WHERE is_best`,
	`CREATE INDEX IF NOT EXISTS strategy_results_backtest_idx
		ON strategy_results (backtest_id)`,
}

// Migrate applies the pipeline schema
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
