package simulation

import (
	"math"

	"github.com/yourusername/crypto-backtest/internal/models"
)

// Signal is a per-bar trading decision.
type Signal int8

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

// Strategy precomputes a signal series over a bar window. Implementations are
// stateless and safe for reuse across runs.
type Strategy interface {
	Name() models.StrategyName
	Signals(bars []Bar) []Signal
}

// ForName returns the strategy implementation for a candidate name.
func ForName(name models.StrategyName) (Strategy, bool) {
	switch name {
	case models.StrategyRSIBollinger:
		return RSIBollingerStrategy{}, true
	case models.StrategyMACD:
		return MACDStrategy{}, true
	case models.StrategyStochastic:
		return StochasticStrategy{}, true
	}
	return nil, false
}

// RSIBollingerStrategy buys oversold touches of the lower Bollinger band and
// sells overbought conditions or upper band touches.
type RSIBollingerStrategy struct{}

func (RSIBollingerStrategy) Name() models.StrategyName { return models.StrategyRSIBollinger }

func (RSIBollingerStrategy) Signals(bars []Bar) []Signal {
	closes := Closes(bars)
	rsi := RSI(closes, 14)
	_, upper, lower := BollingerBands(closes, 20, 2)

	signals := make([]Signal, len(bars))
	for i := range bars {
		if math.IsNaN(rsi[i]) || math.IsNaN(upper[i]) || math.IsNaN(lower[i]) {
			continue
		}
		switch {
		case rsi[i] < 30 && closes[i] <= lower[i]:
			signals[i] = SignalBuy
		case rsi[i] > 70 || closes[i] >= upper[i]:
			signals[i] = SignalSell
		}
	}
	return signals
}

// MACDStrategy trades zero crossings of the MACD histogram.
type MACDStrategy struct{}

func (MACDStrategy) Name() models.StrategyName { return models.StrategyMACD }

func (MACDStrategy) Signals(bars []Bar) []Signal {
	_, _, histogram := MACD(Closes(bars), 12, 26, 9)

	signals := make([]Signal, len(bars))
	for i := 1; i < len(bars); i++ {
		prev, cur := histogram[i-1], histogram[i]
		if math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		switch {
		case prev <= 0 && cur > 0:
			signals[i] = SignalBuy
		case prev >= 0 && cur < 0:
			signals[i] = SignalSell
		}
	}
	return signals
}

// StochasticStrategy buys %K dropping into the oversold zone and sells %K
// breaking into the overbought zone.
type StochasticStrategy struct{}

func (StochasticStrategy) Name() models.StrategyName { return models.StrategyStochastic }

func (StochasticStrategy) Signals(bars []Bar) []Signal {
	k := StochasticK(bars, 14)

	signals := make([]Signal, len(bars))
	for i := 1; i < len(bars); i++ {
		prev, cur := k[i-1], k[i]
		if math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		switch {
		case cur < 20 && prev >= 20:
			signals[i] = SignalBuy
		case cur > 80 && prev <= 80:
			signals[i] = SignalSell
		}
	}
	return signals
}
