package indicator

import (
	"errors"

	"capas-server/internal/model"
)

// ErrNoCandles is returned when a snapshot is requested over an empty series.
var ErrNoCandles = errors.New("indicator: no candles supplied")

// Value is a single indicator reading. Valid is false when the series was
// too short for the lookback, which is distinct from a reading of zero.
type Value struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Snapshot is the point-in-time indicator record computed over a full
// candle series: trailing moving averages, RSI, volume ratio, volatility,
// and the golden-cross flag. Derived on demand, never persisted.
type Snapshot struct {
	MA5          Value   `json:"ma5"`
	MA20         Value   `json:"ma20"`
	MA60         Value   `json:"ma60"`
	RSI14        Value   `json:"rsi14"`
	VolumeRatio  float64 `json:"volume_ratio"`
	Volatility   float64 `json:"volatility"`
	GoldenCross  bool    `json:"golden_cross"`
	CurrentPrice float64 `json:"current_price"`
}

// Compute derives a Snapshot from the supplied candles. Indicators whose
// lookback exceeds the series length come back with Valid=false rather
// than a misleading zero.
func Compute(candles []model.Candle) (Snapshot, error) {
	if len(candles) == 0 {
		return Snapshot{}, ErrNoCandles
	}

	prices := model.ClosePrices(candles)
	volumes := model.Volumes(candles)

	var snap Snapshot
	snap.CurrentPrice = prices[len(prices)-1]

	if v, ok := last(SMA(prices, 5)); ok {
		snap.MA5 = Value{Value: v, Valid: true}
	}
	if v, ok := last(SMA(prices, 20)); ok {
		snap.MA20 = Value{Value: v, Valid: true}
	}
	if v, ok := last(SMA(prices, 60)); ok {
		snap.MA60 = Value{Value: v, Valid: true}
	}
	if v, ok := last(RSI(prices, 14)); ok {
		snap.RSI14 = Value{Value: v, Valid: true}
	}

	snap.VolumeRatio = VolumeRatio(volumes[len(volumes)-1], volumes, len(volumes))
	snap.Volatility = Volatility(prices, 20)
	snap.GoldenCross = snap.MA5.Valid && snap.MA20.Valid && snap.MA5.Value > snap.MA20.Value

	return snap, nil
}
