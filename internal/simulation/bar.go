// Package simulation provides the bar-replay backtest engine and the
// candidate trading strategies evaluated by the pipeline.
package simulation

import "time"

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Closes extracts the close series from a bar slice.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
