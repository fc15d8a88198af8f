package models

// StrategyName identifies one candidate strategy variant. The set is closed:
// candidates are enumerated at compile time, never discovered dynamically.
type StrategyName string

const (
	StrategyRSIBollinger StrategyName = "rsi_bollinger"
	StrategyMACD         StrategyName = "macd"
	StrategyStochastic   StrategyName = "stochastic"
)

// CandidateStrategies returns the fixed, ordered candidate set evaluated for
// every backtest request. Iteration order doubles as the scoring tie-break
// order, so it must stay stable.
func CandidateStrategies() []StrategyName {
	return []StrategyName{
		StrategyRSIBollinger,
		StrategyMACD,
		StrategyStochastic,
	}
}

// Valid reports whether s is a member of the closed candidate set.
func (s StrategyName) Valid() bool {
	switch s {
	case StrategyRSIBollinger, StrategyMACD, StrategyStochastic:
		return true
	}
	return false
}
