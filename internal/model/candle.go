package model

import "encoding/json"

// Candle is one OHLCV bar as returned by the Bithumb v1 candle endpoints.
// JSON field names mirror the upstream payload so candles can be passed
// through to clients without reshaping. Prices are KRW.
type Candle struct {
	Market        string  `json:"market"`
	DateTimeUTC   string  `json:"candle_date_time_utc"`
	DateTimeKST   string  `json:"candle_date_time_kst"`
	OpeningPrice  float64 `json:"opening_price"`
	HighPrice     float64 `json:"high_price"`
	LowPrice      float64 `json:"low_price"`
	TradePrice    float64 `json:"trade_price"` // close
	Timestamp     int64   `json:"timestamp"`   // unix millis
	AccTradePrice float64 `json:"candle_acc_trade_price"`
	AccVolume     float64 `json:"candle_acc_trade_volume"`
}

// Date returns the calendar-date portion of the candle's KST timestamp,
// falling back to UTC when KST is absent.
func (c *Candle) Date() string {
	s := c.DateTimeKST
	if s == "" {
		s = c.DateTimeUTC
	}
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// ClosePrices extracts the closing price series from a candle sequence,
// preserving order.
func ClosePrices(candles []Candle) []float64 {
	prices := make([]float64, len(candles))
	for i := range candles {
		prices[i] = candles[i].TradePrice
	}
	return prices
}

// Volumes extracts the accumulated trade volume series from a candle
// sequence, preserving order.
func Volumes(candles []Candle) []float64 {
	vols := make([]float64, len(candles))
	for i := range candles {
		vols[i] = candles[i].AccVolume
	}
	return vols
}
