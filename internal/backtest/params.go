// Package backtest simulates a fixed rule-based entry strategy against a
// historical candle series.
//
// The rule: enter on a golden cross (MA5 crossing above MA20 at the exact
// step) confirmed by an RSI band and a volume spike, then scan forward for
// a profit target with a stop-loss. Signals are generated strictly
// causally — only candles up to the entry index are visible to the
// indicators.
package backtest

import "fmt"

// Default parameter values, matching the dashboard's defaults.
const (
	DefaultTargetProfitPct = 5.0
	DefaultStopLossPct     = -2.0
	DefaultLookaheadDays   = 10
	DefaultRSILower        = 30.0
	DefaultRSIUpper        = 70.0
	DefaultVolumeSpike     = 1.5
	DefaultWarmupBars      = 60
	DefaultDisplayTrades   = 10

	rsiPeriod    = 14
	volumeWindow = 20
)

// Params configures one simulation run.
type Params struct {
	TargetProfitPct float64 `json:"target_profit_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	LookaheadDays   int     `json:"lookahead_days"`
	RSILower        float64 `json:"rsi_lower"`
	RSIUpper        float64 `json:"rsi_upper"`
	// VolumeSpikeMultiple is the factor by which the latest volume must
	// exceed the trailing 20-bar average (1.5 = 150%).
	VolumeSpikeMultiple float64 `json:"volume_spike_multiple"`
	// WarmupBars is the first candidate entry index. Must cover the
	// largest indicator lookback.
	WarmupBars int `json:"warmup_bars"`
	// DisplayTrades caps Result.Trades; aggregates always reflect the
	// full run.
	DisplayTrades int `json:"display_trades"`
}

// DefaultParams returns a fully-populated parameter set.
func DefaultParams() Params {
	return Params{
		TargetProfitPct:     DefaultTargetProfitPct,
		StopLossPct:         DefaultStopLossPct,
		LookaheadDays:       DefaultLookaheadDays,
		RSILower:            DefaultRSILower,
		RSIUpper:            DefaultRSIUpper,
		VolumeSpikeMultiple: DefaultVolumeSpike,
		WarmupBars:          DefaultWarmupBars,
		DisplayTrades:       DefaultDisplayTrades,
	}
}

// withDefaults fills zero-valued fields. Explicitly supplied values are
// never altered; out-of-range ones are rejected by Validate instead of
// being clamped.
func (p Params) withDefaults() Params {
	if p.TargetProfitPct == 0 {
		p.TargetProfitPct = DefaultTargetProfitPct
	}
	if p.StopLossPct == 0 {
		p.StopLossPct = DefaultStopLossPct
	}
	if p.LookaheadDays == 0 {
		p.LookaheadDays = DefaultLookaheadDays
	}
	if p.RSILower == 0 && p.RSIUpper == 0 {
		p.RSILower = DefaultRSILower
		p.RSIUpper = DefaultRSIUpper
	}
	if p.VolumeSpikeMultiple == 0 {
		p.VolumeSpikeMultiple = DefaultVolumeSpike
	}
	if p.WarmupBars == 0 {
		p.WarmupBars = DefaultWarmupBars
	}
	if p.DisplayTrades == 0 {
		p.DisplayTrades = DefaultDisplayTrades
	}
	return p
}

// Validate rejects invalid parameters before simulation begins.
func (p Params) Validate() error {
	if p.TargetProfitPct <= 0 {
		return fmt.Errorf("target profit must be positive, got %v", p.TargetProfitPct)
	}
	if p.StopLossPct >= 0 || p.StopLossPct <= -100 {
		return fmt.Errorf("stop loss must be in (-100, 0), got %v", p.StopLossPct)
	}
	if p.LookaheadDays < 1 {
		return fmt.Errorf("lookahead days must be at least 1, got %d", p.LookaheadDays)
	}
	if p.RSILower < 0 || p.RSIUpper > 100 || p.RSILower >= p.RSIUpper {
		return fmt.Errorf("RSI bounds must satisfy 0 <= lower < upper <= 100, got [%v, %v]", p.RSILower, p.RSIUpper)
	}
	if p.VolumeSpikeMultiple <= 0 {
		return fmt.Errorf("volume spike multiple must be positive, got %v", p.VolumeSpikeMultiple)
	}
	if p.WarmupBars < DefaultWarmupBars {
		return fmt.Errorf("warmup must cover the largest indicator lookback (%d bars), got %d", DefaultWarmupBars, p.WarmupBars)
	}
	if p.DisplayTrades < 1 {
		return fmt.Errorf("display trade count must be at least 1, got %d", p.DisplayTrades)
	}
	return nil
}
