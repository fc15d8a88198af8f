package simulation

import "math"

// Crypto markets trade every day, so daily metrics annualize over 365.
const tradingDaysPerYear = 365

// PerformanceMetrics summarizes one simulated run.
type PerformanceMetrics struct {
	TotalReturn    float64
	NumberOfTrades int
	WinningTrades  int
	LosingTrades   int
	MaxDrawdown    float64
	SharpeRatio    float64
}

// CalculateMaxDrawdown returns the largest peak-to-trough decline of the
// equity curve as a fraction of the peak.
func CalculateMaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	maxDrawdown := 0.0
	for _, value := range equity {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			drawdown := (peak - value) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	return maxDrawdown
}

// CalculateSharpeRatio returns the annualized Sharpe ratio of a daily equity
// curve. Fewer than two points or zero volatility yields 0.
func CalculateSharpeRatio(equity []float64, riskFreeRate float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	dailyRiskFree := riskFreeRate / tradingDaysPerYear
	return (mean - dailyRiskFree) / stdDev * math.Sqrt(tradingDaysPerYear)
}
