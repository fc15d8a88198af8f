package service

import "github.com/yourusername/crypto-backtest/internal/models"

// Composite score weights. Drawdown is inverted before weighting so that a
// smaller drawdown scores higher.
const (
	weightReturn   = 0.4
	weightSharpe   = 0.4
	weightDrawdown = 0.2

	// When every candidate posts the same value for a metric, min-max
	// normalization is undefined and the metric is scored as neutral.
	neutralScore = 0.5
)

// ScoreResults computes the composite score for each candidate, marks exactly
// one winner, and returns its index. Candidates are compared only within this
// batch: each metric is min-max normalized over the batch. Ties go to the
// earliest candidate in slice order.
func ScoreResults(results []*models.StrategyResult) int {
	if len(results) == 0 {
		return -1
	}

	returns := make([]float64, len(results))
	sharpes := make([]float64, len(results))
	drawdowns := make([]float64, len(results))
	for i, r := range results {
		returns[i] = r.TotalReturn
		sharpes[i] = r.SharpeRatio
		drawdowns[i] = r.MaxDrawdown
	}

	normReturns := normalize(returns)
	normSharpes := normalize(sharpes)
	normDrawdowns := normalize(drawdowns)

	best := 0
	for i, r := range results {
		r.Score = weightReturn*normReturns[i] +
			weightSharpe*normSharpes[i] +
			weightDrawdown*(1-normDrawdowns[i])
		r.IsBest = false
		if r.Score > results[best].Score {
			best = i
		}
	}

	results[best].IsBest = true
	return best
}

// normalize maps values onto [0, 1] via min-max scaling, or to the neutral
// score when the range is degenerate.
func normalize(values []float64) []float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	if max == min {
		for i := range out {
			out[i] = neutralScore
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}
