// Package indicator provides technical indicator calculations over price
// and volume series.
//
// All functions are pure and stateless: calling them repeatedly on growing
// prefixes of a series reproduces the same trailing values as computing
// once on the full series and slicing. The backtest simulator relies on
// this property for strict-causality signal evaluation.
package indicator

import "math"

// SMA computes the simple moving average of prices over the given period.
// The result has length max(0, len(prices)-period+1); element k is the
// arithmetic mean of prices[k..k+period-1]. Returns nil when the series is
// shorter than the period.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	out := make([]float64, 0, len(prices)-period+1)
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// RSI computes the Relative Strength Index over successive price
// differences. For each window of period consecutive differences the
// positive and negative components are averaged separately; a window with
// zero average loss yields exactly 100. The result has length
// len(prices)-1-period (one value per full window after differencing).
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period+2 {
		return nil
	}
	changes := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		changes[i-1] = prices[i] - prices[i-1]
	}

	out := make([]float64, 0, len(changes)-period)
	for i := period; i < len(changes); i++ {
		var gains, losses float64
		for _, c := range changes[i-period : i] {
			if c > 0 {
				gains += c
			} else {
				losses -= c
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			out = append(out, 100)
			continue
		}
		rs := avgGain / avgLoss
		out = append(out, 100-(100/(1+rs)))
	}
	return out
}

// VolumeRatio returns currentVolume as a percentage of the mean of the
// trailing window volumes. A window larger than the series uses the whole
// series. Returns 0 when no volume data is available or the mean is zero.
func VolumeRatio(currentVolume float64, volumes []float64, window int) float64 {
	if len(volumes) == 0 {
		return 0
	}
	if window <= 0 || window > len(volumes) {
		window = len(volumes)
	}
	recent := volumes[len(volumes)-window:]
	var sum float64
	for _, v := range recent {
		sum += v
	}
	mean := sum / float64(window)
	if mean == 0 {
		return 0
	}
	return currentVolume / mean * 100
}

// Volatility returns the coefficient of variation of the trailing window
// prices as a percentage: population standard deviation divided by mean.
// Returns 0 for an empty series or a zero mean.
func Volatility(prices []float64, window int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if window <= 0 || window > len(prices) {
		window = len(prices)
	}
	recent := prices[len(prices)-window:]

	var sum float64
	for _, p := range recent {
		sum += p
	}
	mean := sum / float64(window)
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, p := range recent {
		d := p - mean
		variance += d * d
	}
	variance /= float64(window)

	return math.Sqrt(variance) / mean * 100
}

// GoldenCross reports whether the latest 5-period SMA sits above the
// latest 20-period SMA. False when the series is too short for either.
func GoldenCross(prices []float64) bool {
	ma5 := SMA(prices, 5)
	ma20 := SMA(prices, 20)
	if len(ma5) == 0 || len(ma20) == 0 {
		return false
	}
	return ma5[len(ma5)-1] > ma20[len(ma20)-1]
}

func last(s []float64) (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}
