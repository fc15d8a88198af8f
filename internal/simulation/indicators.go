package simulation

import "math"

// Indicator series are aligned with their input: index i holds the indicator
// value at bar i, NaN during the warmup window.

// SMA computes a simple moving average.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes an exponential moving average seeded with the SMA of the
// first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// RSI computes the relative strength index with Wilder smoothing.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// BollingerBands computes the middle, upper and lower bands for the given
// period and standard deviation multiplier.
func BollingerBands(closes []float64, period int, stdDevs float64) (middle, upper, lower []float64) {
	middle = SMA(closes, period)
	upper = nanSeries(len(closes))
	lower = nanSeries(len(closes))

	for i := period - 1; i < len(closes); i++ {
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := closes[j] - middle[i]
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = middle[i] + stdDevs*sd
		lower[i] = middle[i] - stdDevs*sd
	}
	return middle, upper, lower
}

// MACD computes the MACD line, signal line and histogram for the given
// fast, slow and signal periods.
func MACD(closes []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	macdLine = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macdLine[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// Seed the signal EMA on the first valid stretch of the MACD line
	signalLine = nanSeries(len(closes))
	start := slow - 1
	if start+signal <= len(closes) {
		var seed float64
		for i := start; i < start+signal; i++ {
			seed += macdLine[i]
		}
		seed /= float64(signal)
		signalLine[start+signal-1] = seed

		multiplier := 2.0 / (float64(signal) + 1.0)
		for i := start + signal; i < len(closes); i++ {
			signalLine[i] = (macdLine[i]-signalLine[i-1])*multiplier + signalLine[i-1]
		}
	}

	histogram = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(macdLine[i]) && !math.IsNaN(signalLine[i]) {
			histogram[i] = macdLine[i] - signalLine[i]
		}
	}
	return macdLine, signalLine, histogram
}

// StochasticK computes the %K oscillator over the given lookback period.
func StochasticK(bars []Bar, period int) []float64 {
	out := nanSeries(len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}

	for i := period - 1; i < len(bars); i++ {
		lowest := math.Inf(1)
		highest := math.Inf(-1)
		for j := i - period + 1; j <= i; j++ {
			lowest = math.Min(lowest, bars[j].Low)
			highest = math.Max(highest, bars[j].High)
		}
		if highest == lowest {
			out[i] = 50
			continue
		}
		out[i] = (bars[i].Close - lowest) / (highest - lowest) * 100
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
