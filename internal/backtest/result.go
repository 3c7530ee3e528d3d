package backtest

import "math"

// Trade is one simulated position, immutable once closed. DaysToTarget is
// nil unless the profit target was reached.
type Trade struct {
	Date         string  `json:"date"` // entry candle date (KST)
	OpenIndex    int     `json:"open_index"`
	EntryPrice   float64 `json:"entry_price"`
	TargetPrice  float64 `json:"target_price"`
	ExitPrice    float64 `json:"exit_price"`
	DaysToTarget *int    `json:"days_to_target"`
	Reached      bool    `json:"reached"`
	ProfitPct    float64 `json:"profit_pct"`
}

// Result aggregates one simulation run. Trades holds only the most recent
// DisplayTrades entries for presentation; every other field reflects the
// full run. A run over too few candles reports zero trades, never NaN.
type Result struct {
	TotalTrades      int     `json:"total_trades"`
	SuccessfulTrades int     `json:"successful_trades"`
	SuccessRate      float64 `json:"success_rate"`
	TotalProfitPct   float64 `json:"total_profit_pct"`
	AvgProfitPct     float64 `json:"avg_profit_pct"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	Trades           []Trade `json:"trades"`
}

// round2 mirrors the dashboard's two-decimal presentation of aggregates.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
