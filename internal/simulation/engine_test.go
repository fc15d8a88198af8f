package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/crypto-backtest/internal/models"
)

// scriptedStrategy returns a fixed signal sequence regardless of the bars.
type scriptedStrategy struct {
	signals []Signal
}

func (s scriptedStrategy) Name() models.StrategyName { return models.StrategyMACD }

func (s scriptedStrategy) Signals(bars []Bar) []Signal { return s.signals }

func barsWithCloses(closes ...float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestEngineRun_RoundTripAccounting(t *testing.T) {
	engine := NewEngine(0)
	bars := barsWithCloses(100, 110, 120, 120)
	strategy := scriptedStrategy{signals: []Signal{SignalBuy, SignalHold, SignalSell, SignalHold}}

	perf, err := engine.Run(strategy, bars, RunParams{InitialCash: 1000, FeeRate: 0})

	require.NoError(t, err)
	assert.InDelta(t, 0.20, perf.TotalReturn, 1e-9)
	assert.Equal(t, 1, perf.NumberOfTrades)
	assert.Equal(t, 1, perf.WinningTrades)
	assert.Equal(t, 0, perf.LosingTrades)
	assert.InDelta(t, 0, perf.MaxDrawdown, 1e-9)
}

func TestEngineRun_FeesChargedOnBothSides(t *testing.T) {
	engine := NewEngine(0)
	bars := barsWithCloses(100, 120)
	strategy := scriptedStrategy{signals: []Signal{SignalBuy, SignalSell}}

	perf, err := engine.Run(strategy, bars, RunParams{InitialCash: 1000, FeeRate: 0.01})

	require.NoError(t, err)
	// Buy: 990 invested after fee, 9.9 units. Sell at 120: 1188 minus
	// 11.88 fee leaves 1176.12.
	assert.InDelta(t, 0.17612, perf.TotalReturn, 1e-9)
	assert.Equal(t, 1, perf.WinningTrades)
}

func TestEngineRun_LosingTradeCounted(t *testing.T) {
	engine := NewEngine(0)
	bars := barsWithCloses(100, 80)
	strategy := scriptedStrategy{signals: []Signal{SignalBuy, SignalSell}}

	perf, err := engine.Run(strategy, bars, RunParams{InitialCash: 1000, FeeRate: 0})

	require.NoError(t, err)
	assert.Equal(t, 1, perf.NumberOfTrades)
	assert.Equal(t, 1, perf.LosingTrades)
	assert.InDelta(t, -0.20, perf.TotalReturn, 1e-9)
	assert.InDelta(t, 0.20, perf.MaxDrawdown, 1e-9)
}

func TestEngineRun_RedundantSignalsIgnored(t *testing.T) {
	engine := NewEngine(0)
	bars := barsWithCloses(100, 100, 100, 100)
	// Sell while flat, then double buy: only one position may be opened.
	strategy := scriptedStrategy{signals: []Signal{SignalSell, SignalBuy, SignalBuy, SignalHold}}

	perf, err := engine.Run(strategy, bars, RunParams{InitialCash: 1000, FeeRate: 0})

	require.NoError(t, err)
	// Open position marked to market, no completed trades.
	assert.Equal(t, 0, perf.NumberOfTrades)
	assert.InDelta(t, 0, perf.TotalReturn, 1e-9)
}

func TestEngineRun_OpenPositionMarkedToMarket(t *testing.T) {
	engine := NewEngine(0)
	bars := barsWithCloses(100, 150)
	strategy := scriptedStrategy{signals: []Signal{SignalBuy, SignalHold}}

	perf, err := engine.Run(strategy, bars, RunParams{InitialCash: 1000, FeeRate: 0})

	require.NoError(t, err)
	assert.Equal(t, 0, perf.NumberOfTrades)
	assert.InDelta(t, 0.50, perf.TotalReturn, 1e-9)
}

func TestEngineRun_RejectsBadInput(t *testing.T) {
	engine := NewEngine(0)
	strategy := scriptedStrategy{signals: []Signal{SignalHold}}

	_, err := engine.Run(strategy, nil, RunParams{InitialCash: 1000})
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	_, err = engine.Run(strategy, barsWithCloses(100), RunParams{InitialCash: 0})
	assert.Error(t, err)

	_, err = engine.Run(strategy, barsWithCloses(100), RunParams{InitialCash: 1000, FeeRate: -0.1})
	assert.Error(t, err)
}

func TestCalculateMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.25, CalculateMaxDrawdown([]float64{100, 120, 90, 130}), 1e-9)
	assert.InDelta(t, 0, CalculateMaxDrawdown([]float64{100, 110, 120}), 1e-9)
	assert.InDelta(t, 0, CalculateMaxDrawdown(nil), 1e-9)
}

func TestCalculateSharpeRatio_DegenerateInputs(t *testing.T) {
	// Flat equity has zero volatility.
	assert.InDelta(t, 0, CalculateSharpeRatio([]float64{100, 100, 100}, 0), 1e-9)
	// Too few points to form a return series.
	assert.InDelta(t, 0, CalculateSharpeRatio([]float64{100}, 0), 1e-9)
}

func TestCalculateSharpeRatio_PositiveDrift(t *testing.T) {
	equity := []float64{100, 101, 102.5, 103, 104.8, 105.2}
	assert.Greater(t, CalculateSharpeRatio(equity, 0), 0.0)
}

func TestForName_CoversEveryCandidate(t *testing.T) {
	for _, name := range models.CandidateStrategies() {
		strategy, ok := ForName(name)
		require.True(t, ok, "missing strategy for %s", name)
		assert.Equal(t, name, strategy.Name())
	}

	_, ok := ForName("momentum")
	assert.False(t, ok)
}

func TestStrategies_NoSignalsDuringWarmup(t *testing.T) {
	bars := make([]Bar, 40)
	for i := range bars {
		price := 100 + float64(i%7)
		bars[i] = Bar{Open: price, High: price + 2, Low: price - 2, Close: price}
	}

	for _, name := range models.CandidateStrategies() {
		strategy, _ := ForName(name)
		signals := strategy.Signals(bars)
		require.Len(t, signals, len(bars))
		for i := 0; i < 14; i++ {
			assert.Equal(t, SignalHold, signals[i], "%s signaled during warmup at %d", name, i)
		}
	}
}
