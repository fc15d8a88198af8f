package simulation

import (
	"fmt"

	"github.com/yourusername/crypto-backtest/internal/models"
)

// RunParams holds the account settings for one simulated run.
type RunParams struct {
	InitialCash float64
	FeeRate     float64
}

// Engine replays a bar window through a strategy with single-position,
// all-in position sizing. Buys are ignored while long, sells while flat.
type Engine struct {
	riskFreeRate float64
}

// NewEngine creates a simulation engine.
func NewEngine(riskFreeRate float64) *Engine {
	return &Engine{riskFreeRate: riskFreeRate}
}

// Run simulates one strategy over the bar window and returns its performance
// metrics.
func (e *Engine) Run(strategy Strategy, bars []Bar, params RunParams) (*PerformanceMetrics, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: empty bar window", models.ErrDataUnavailable)
	}
	if params.InitialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive, got %f", params.InitialCash)
	}
	if params.FeeRate < 0 {
		return nil, fmt.Errorf("fee rate must not be negative, got %f", params.FeeRate)
	}

	signals := strategy.Signals(bars)

	cash := params.InitialCash
	position := 0.0
	entryValue := 0.0

	metrics := &PerformanceMetrics{}
	equity := make([]float64, len(bars))

	for i, bar := range bars {
		switch signals[i] {
		case SignalBuy:
			if position == 0 && cash > 0 {
				spend := cash
				fee := spend * params.FeeRate
				position = (spend - fee) / bar.Close
				entryValue = spend
				cash = 0
			}
		case SignalSell:
			if position > 0 {
				proceeds := position * bar.Close
				fee := proceeds * params.FeeRate
				cash = proceeds - fee

				metrics.NumberOfTrades++
				if cash > entryValue {
					metrics.WinningTrades++
				} else {
					metrics.LosingTrades++
				}
				position = 0
				entryValue = 0
			}
		}
		equity[i] = cash + position*bar.Close
	}

	// An open position at the end of the window is marked to the final close
	// but not counted as a completed trade.
	finalEquity := equity[len(equity)-1]

	metrics.TotalReturn = (finalEquity - params.InitialCash) / params.InitialCash
	metrics.MaxDrawdown = CalculateMaxDrawdown(equity)
	metrics.SharpeRatio = CalculateSharpeRatio(equity, e.riskFreeRate)

	return metrics, nil
}
