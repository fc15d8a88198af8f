package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BacktestRequest represents a user-submitted backtest job.
// The tuple (Name, Symbol, StartDate, EndDate) is the natural key and is
// unique at the store level; a resubmission with the same key resolves to
// the existing row.
type BacktestRequest struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Symbol      string          `db:"symbol" json:"symbol"`
	StartDate   time.Time       `db:"start_date" json:"start_date"`
	EndDate     time.Time       `db:"end_date" json:"end_date"`
	InitialCash decimal.Decimal `db:"initial_cash" json:"initial_cash"`
	FeeRate     decimal.Decimal `db:"fee_rate" json:"fee_rate"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// StrategyResult represents one candidate strategy's performance for a
// backtest request. Rows are written once, in bulk, inside one transaction;
// exactly one row per backtest carries IsBest=true.
type StrategyResult struct {
	ID             int64     `db:"id" json:"id"`
	BacktestID     int64     `db:"backtest_id" json:"backtest_id"`
	StrategyName   string    `db:"strategy_name" json:"strategy_name"`
	TotalReturn    float64   `db:"total_return" json:"total_return"`
	NumberOfTrades int       `db:"number_of_trades" json:"number_of_trades"`
	WinningTrades  int       `db:"winning_trades" json:"winning_trades"`
	LosingTrades   int       `db:"losing_trades" json:"losing_trades"`
	MaxDrawdown    float64   `db:"max_drawdown" json:"max_drawdown"`
	SharpeRatio    float64   `db:"sharpe_ratio" json:"sharpe_ratio"`
	Score          float64   `db:"score" json:"score"`
	IsBest         bool      `db:"is_best" json:"is_best"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MetricsMap returns the result's raw metrics keyed by reporting name.
func (r *StrategyResult) MetricsMap() map[string]float64 {
	return map[string]float64{
		"total_return":     r.TotalReturn,
		"number_of_trades": float64(r.NumberOfTrades),
		"winning_trades":   float64(r.WinningTrades),
		"losing_trades":    float64(r.LosingTrades),
		"max_drawdown":     r.MaxDrawdown,
		"sharpe_ratio":     r.SharpeRatio,
	}
}
