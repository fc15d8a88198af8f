package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fullRangeBars pins every bar's range to [0, 100] so %K(14) equals the
// close, making crossing levels easy to script.
func fullRangeBars(closes ...float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{High: 100, Low: 0, Close: c}
	}
	return bars
}

func TestStochasticStrategy_BuysDropIntoOversold(t *testing.T) {
	closes := make([]float64, 0, 16)
	for i := 0; i < 14; i++ {
		closes = append(closes, 50)
	}
	closes = append(closes, 25, 15)

	signals := StochasticStrategy{}.Signals(fullRangeBars(closes...))
	require.Len(t, signals, 16)

	// 50 -> 25 stays above the oversold line; 25 -> 15 crosses down
	// through 20 and buys.
	assert.Equal(t, SignalHold, signals[14])
	assert.Equal(t, SignalBuy, signals[15])
}

func TestStochasticStrategy_SellsBreakIntoOverbought(t *testing.T) {
	closes := make([]float64, 0, 16)
	for i := 0; i < 14; i++ {
		closes = append(closes, 50)
	}
	closes = append(closes, 70, 85)

	signals := StochasticStrategy{}.Signals(fullRangeBars(closes...))
	require.Len(t, signals, 16)

	// 50 -> 70 stays below the overbought line; 70 -> 85 crosses up
	// through 80 and sells.
	assert.Equal(t, SignalHold, signals[14])
	assert.Equal(t, SignalSell, signals[15])
}

func TestStochasticStrategy_NoSignalsInsideWarmup(t *testing.T) {
	signals := StochasticStrategy{}.Signals(fullRangeBars(10, 90, 10, 90, 10))
	for i, s := range signals {
		assert.Equal(t, SignalHold, s, "bar %d", i)
	}
}
