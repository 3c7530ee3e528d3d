// cmd/backtest runs the golden-cross simulation against historical
// candles, fetched live from the exchange or loaded from a JSON file.
//
// Usage:
//
//	go run ./cmd/backtest --market=KRW-BTC --count=200 --target=5 --stop=-2
//	go run ./cmd/backtest --file=candles.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"capas-server/internal/backtest"
	"capas-server/internal/exchange"
	"capas-server/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	market := flag.String("market", "KRW-BTC", "Market to fetch candles for")
	count := flag.Int("count", 200, "Number of daily candles to fetch")
	file := flag.String("file", "", "JSON candle file (overrides live fetch)")
	baseURL := flag.String("base-url", exchange.DefaultBaseURL, "Exchange REST endpoint")
	target := flag.Float64("target", backtest.DefaultTargetProfitPct, "Target profit %")
	stop := flag.Float64("stop", backtest.DefaultStopLossPct, "Stop loss % (negative)")
	lookahead := flag.Int("lookahead", backtest.DefaultLookaheadDays, "Max holding days")
	display := flag.Int("display", backtest.DefaultDisplayTrades, "Trades to display")
	cash := flag.Float64("cash", 0, "Virtual balance for cash projection (0=off)")
	ratio := flag.Float64("ratio", 1.0, "Fraction of balance to invest in projection")
	flag.Parse()

	candles, err := loadCandles(*file, *baseURL, *market, *count)
	if err != nil {
		log.Fatalf("[backtest] load candles: %v", err)
	}
	log.Printf("[backtest] %d candles loaded for %s", len(candles), *market)

	params := backtest.Params{
		TargetProfitPct: *target,
		StopLossPct:     *stop,
		LookaheadDays:   *lookahead,
		DisplayTrades:   *display,
	}
	result, err := backtest.Run(candles, params)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	for _, t := range result.Trades {
		outcome := "stop/timeout"
		if t.Reached {
			outcome = fmt.Sprintf("target in %dd", *t.DaysToTarget)
		}
		fmt.Printf("  [%s] entry=%.2f exit=%.2f %+.2f%% (%s)\n",
			t.Date, t.EntryPrice, t.ExitPrice, t.ProfitPct, outcome)
	}

	// Print summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Trades:            %-16d ║\n", result.TotalTrades)
	fmt.Printf("║  Successful:        %-16d ║\n", result.SuccessfulTrades)
	fmt.Printf("║  Success rate:      %-15.2f%% ║\n", result.SuccessRate)
	fmt.Printf("║  Total profit:      %-15.2f%% ║\n", result.TotalProfitPct)
	fmt.Printf("║  Avg profit:        %-15.2f%% ║\n", result.AvgProfitPct)
	fmt.Printf("║  Max drawdown:      %-15.2f%% ║\n", result.MaxDrawdownPct)
	fmt.Println("╚══════════════════════════════════════╝")

	if *cash > 0 {
		proj := backtest.ProjectCash(result, *cash, *cash, *ratio)
		if proj == nil {
			fmt.Println("no trades to project")
			return
		}
		fmt.Printf("\ninvested %.0f, net %+.0f, final balance %.0f (%+.2f%%)\n",
			proj.InvestmentAmount, proj.NetProfit, proj.FinalBalance, proj.TotalReturnPct)
	}
}

func loadCandles(file, baseURL, market string, count int) ([]model.Candle, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var candles []model.Candle
		if err := json.Unmarshal(data, &candles); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		return candles, nil
	}

	client := exchange.New(exchange.Config{BaseURL: baseURL})
	g, err := model.NewGranularity("days", 0)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return client.GetCandles(ctx, market, count, g)
}
