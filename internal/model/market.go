// Package model defines the market data types shared across the server:
// candles, markets, tickers, and candle granularities. All shapes follow
// the Bithumb v1 (Upbit-compatible) public API payloads.
package model

import "strings"

// Market is one tradable pair from the market listing endpoint.
type Market struct {
	Market      string `json:"market"` // e.g. "KRW-BTC"
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}

// Asset returns the base asset symbol without the quote prefix,
// e.g. "BTC" for "KRW-BTC".
func (m *Market) Asset() string {
	if i := strings.IndexByte(m.Market, '-'); i >= 0 {
		return m.Market[i+1:]
	}
	return m.Market
}

// Change direction of a ticker versus the previous close.
const (
	ChangeRise = "RISE"
	ChangeFall = "FALL"
	ChangeEven = "EVEN"
)

// Ticker is a point-in-time price snapshot for one market.
type Ticker struct {
	Market           string  `json:"market"`
	TradePrice       float64 `json:"trade_price"`
	Change           string  `json:"change"` // RISE, FALL, EVEN
	SignedChangeRate float64 `json:"signed_change_rate"`
	AccVolume24h     float64 `json:"acc_trade_volume_24h"`
	High52Week       float64 `json:"highest_52_week_price"`
	Timestamp        int64   `json:"timestamp"`
}
