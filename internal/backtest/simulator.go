package backtest

import (
	"log"

	"capas-server/internal/indicator"
	"capas-server/internal/model"
)

// Run walks the candle series day by day, recomputing indicators at each
// step over only the candles seen so far, and simulates every entry signal
// forward through its exit.
//
// Exit precedence within the lookahead window, per day: profit target on
// the day's high first, then stop-loss on the day's low. A position that
// triggers neither within the window times out with the stop-loss return
// applied as its outcome. Entry search continues at the next index after a
// signal — overlapping simulated positions are allowed.
//
// Too few candles for warmup plus lookahead yields a zero-trade Result,
// not an error.
func Run(candles []model.Candle, params Params) (Result, error) {
	params = params.withDefaults()
	if err := params.Validate(); err != nil {
		return Result{}, err
	}

	prices := model.ClosePrices(candles)
	volumes := model.Volumes(candles)

	var (
		trades          []Trade
		totalProfit     float64
		successful      int
		maxDrawdown     float64
		currentDrawdown float64
	)

	for i := params.WarmupBars; i < len(candles)-params.LookaheadDays; i++ {
		if !entrySignal(prices[:i+1], volumes[:i+1], params) {
			continue
		}

		trade := simulateExit(candles, i, params)
		trades = append(trades, trade)
		if trade.Reached {
			successful++
		}
		totalProfit += trade.ProfitPct

		// Drawdown: most negative running sum of consecutive losing
		// returns, reset on any winner.
		if trade.ProfitPct < 0 {
			currentDrawdown += trade.ProfitPct
		} else {
			currentDrawdown = 0
		}
		if currentDrawdown < maxDrawdown {
			maxDrawdown = currentDrawdown
		}
	}

	result := Result{
		TotalTrades:      len(trades),
		SuccessfulTrades: successful,
		TotalProfitPct:   round2(totalProfit),
		MaxDrawdownPct:   round2(maxDrawdown),
	}
	if len(trades) > 0 {
		result.SuccessRate = round2(float64(successful) / float64(len(trades)) * 100)
		result.AvgProfitPct = round2(totalProfit / float64(len(trades)))
	}

	display := trades
	if len(display) > params.DisplayTrades {
		display = display[len(display)-params.DisplayTrades:]
	}
	result.Trades = append([]Trade(nil), display...)

	log.Printf("[backtest] run complete: %d trades, %.2f%% success, %.2f%% avg profit",
		result.TotalTrades, result.SuccessRate, result.AvgProfitPct)
	return result, nil
}

// entrySignal evaluates the buy rule at the last index of the visible
// prefix: a golden cross at this exact step, RSI strictly inside the band,
// and the latest volume exceeding the trailing average by the spike
// multiple.
func entrySignal(prices, volumes []float64, params Params) bool {
	ma5 := indicator.SMA(prices, 5)
	ma20 := indicator.SMA(prices, 20)
	rsi := indicator.RSI(prices, rsiPeriod)
	if len(ma5) < 2 || len(ma20) < 2 || len(rsi) == 0 {
		return false
	}

	curMA5, prevMA5 := ma5[len(ma5)-1], ma5[len(ma5)-2]
	curMA20, prevMA20 := ma20[len(ma20)-1], ma20[len(ma20)-2]
	curRSI := rsi[len(rsi)-1]

	crossed := prevMA5 <= prevMA20 && curMA5 > curMA20
	if !crossed {
		return false
	}
	if curRSI <= params.RSILower || curRSI >= params.RSIUpper {
		return false
	}

	window := volumeWindow
	if window > len(volumes) {
		window = len(volumes)
	}
	var sum float64
	for _, v := range volumes[len(volumes)-window:] {
		sum += v
	}
	avgVolume := sum / float64(window)
	return volumes[len(volumes)-1] > avgVolume*params.VolumeSpikeMultiple
}

// simulateExit opens a position at candle i's close and scans forward for
// its terminal state.
func simulateExit(candles []model.Candle, i int, params Params) Trade {
	entry := candles[i].TradePrice
	target := entry * (1 + params.TargetProfitPct/100)
	stop := entry * (1 + params.StopLossPct/100)

	trade := Trade{
		Date:        candles[i].Date(),
		OpenIndex:   i,
		EntryPrice:  entry,
		TargetPrice: target,
		ExitPrice:   stop,
		ProfitPct:   params.StopLossPct,
	}

	for j := 1; j <= params.LookaheadDays && i+j < len(candles); j++ {
		day := candles[i+j]

		if day.HighPrice >= target {
			days := j
			trade.Reached = true
			trade.DaysToTarget = &days
			trade.ExitPrice = target
			trade.ProfitPct = params.TargetProfitPct
			return trade
		}
		if day.LowPrice <= stop {
			return trade
		}
	}

	// Timed out: the stop-loss return stands as the realized outcome.
	return trade
}
