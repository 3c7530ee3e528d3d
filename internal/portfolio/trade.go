// Package portfolio implements virtual-account accounting: trade history,
// weighted-average-cost holdings, realized and unrealized P&L, and
// total-asset valuation against live prices.
//
// The package holds no mutable state of its own. Account balance and
// trade history live in a State value; ApplyTrade is a pure transition
// producing a new State, and Holdings is a full replay over the history.
// Persistence is the caller's concern (see store/sqlite).
package portfolio

import (
	"errors"
	"fmt"
	"time"
)

// Side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Accounting violations. Rejections happen before any state mutation.
var (
	ErrInsufficientFunds    = errors.New("portfolio: buy exceeds available cash")
	ErrInsufficientHoldings = errors.New("portfolio: sell exceeds held quantity")
)

// ErrInvalidTrade marks malformed trade records rejected by Normalize,
// as opposed to well-formed trades the account cannot afford.
var ErrInvalidTrade = errors.New("portfolio: invalid trade")

// TradeRecord is one executed buy or sell. RealizedProfit is zero on buys
// and computed once at sale time on sells; it is never recomputed when
// later trades change the average cost.
type TradeRecord struct {
	ID             string    `json:"id"`
	Market         string    `json:"market"` // e.g. "KRW-BTC"
	Side           Side      `json:"side"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	Timestamp      time.Time `json:"timestamp"`
	RealizedProfit float64   `json:"realized_profit"`
}

// Normalize validates a trade record at the ingestion boundary. Records
// arrive from multiple origins (live orders, backtest conversion, imports)
// and downstream accounting assumes a single well-formed shape.
func (t TradeRecord) Normalize() (TradeRecord, error) {
	if t.ID == "" {
		return t, fmt.Errorf("%w: trade id is required", ErrInvalidTrade)
	}
	if t.Market == "" {
		return t, fmt.Errorf("%w: trade market is required", ErrInvalidTrade)
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return t, fmt.Errorf("%w: unknown side %q", ErrInvalidTrade, t.Side)
	}
	if t.Quantity <= 0 {
		return t, fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidTrade, t.Quantity)
	}
	if t.Price <= 0 {
		return t, fmt.Errorf("%w: price must be positive, got %v", ErrInvalidTrade, t.Price)
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if t.Side == SideBuy {
		t.RealizedProfit = 0
	}
	return t, nil
}

// Cost returns the trade's cash value (quantity times price).
func (t TradeRecord) Cost() float64 {
	return t.Quantity * t.Price
}
