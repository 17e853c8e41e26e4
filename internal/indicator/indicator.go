// Package indicator computes moving averages and RSI over close prices.
// Every function returns a series aligned with its input, using NaN where
// the value is undefined.
package indicator

import "math"

// SMA is the trailing simple moving average. Index i is defined once a full
// window of period closes ends at i.
func SMA(closes []float64, period int) []float64 {
	out := undefined(len(closes))
	if period <= 0 || period > len(closes) {
		return out
	}

	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is seeded with the first close and defined at every index.
// A non-positive period behaves like period 1 and returns the closes.
func EMA(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	period = max(period, 1)
	k := 2.0 / float64(period+1)

	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI uses Wilder smoothing seeded with the plain mean of the first period
// gains and losses. The first period indices are undefined.
func RSI(closes []float64, period int) []float64 {
	out := undefined(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		gain, loss := step(closes[i-1], closes[i])
		gainSum += gain
		lossSum += loss
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = strength(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		gain, loss := step(closes[i-1], closes[i])
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = strength(avgGain, avgLoss)
	}
	return out
}

func step(prev, cur float64) (gain, loss float64) {
	change := cur - prev
	return math.Max(change, 0), math.Max(-change, 0)
}

// strength maps average gain/loss onto 0..100; no losses at all pins it to 100.
func strength(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Value returns nil for undefined points so encoders emit null.
func Value(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
