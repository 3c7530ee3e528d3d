// cmd/server runs the dashboard backend: market data proxied from the
// exchange with a Redis cache in front, the indicator and backtest
// engines, the SQLite-backed paper-trading account, and a ticker
// WebSocket fed by the polling loops.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capas-server/config"
	"capas-server/internal/api"
	"capas-server/internal/exchange"
	"capas-server/internal/logger"
	"capas-server/internal/metrics"
	"capas-server/internal/model"
	"capas-server/internal/poller"
	"capas-server/internal/portfolio"
	redisstore "capas-server/internal/store/redis"
	sqlitestore "capas-server/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("capas-server", slog.LevelInfo)
	log.Println("[server] starting...")

	cfg := config.Load()

	// Response cache is optional; without Redis every request goes upstream.
	var cache *redisstore.Cache
	if cfg.RedisAddr != "" {
		c, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[server] redis unavailable, caching disabled: %v", err)
		} else {
			cache = c
			defer cache.Close()
		}
	}

	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[server] sqlite open failed: %v", err)
	}
	defer store.Close()

	account, err := api.NewAccountManager(store, cfg.InitialCash)
	if err != nil {
		log.Fatalf("[server] account load failed: %v", err)
	}

	m := metrics.New()

	client := exchange.New(exchange.Config{
		BaseURL: cfg.ExchangeBaseURL,
		Quote:   cfg.QuoteCurrency,
	})

	hub := api.NewHub(func(n int) { m.WSClients.Set(float64(n)) })

	// Live feeds: the selected-market loop drives the WebSocket stream,
	// the holdings loop keeps account valuations current.
	g, err := model.NewGranularity("minutes", 1)
	if err != nil {
		log.Fatalf("[server] granularity: %v", err)
	}
	marketPoller := poller.MarketRefresh(client, cfg.QuoteCurrency+"-BTC", g, hub.Broadcast)
	holdingsPoller := poller.HoldingsRefresh(client, account.HeldMarkets, cfg.HoldingsRefresh,
		func(quotes portfolio.QuoteMap) { account.SetQuotes(quotes) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	marketPoller.Start(ctx)
	holdingsPoller.Start(ctx)

	srv := api.New(cfg.ListenAddr, client, cache, account, hub, m)
	srv.Start()

	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[server] shutting down...")

	marketPoller.Stop()
	holdingsPoller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("[server] shutdown: %v", err)
	}
	metricsSrv.Stop(shutdownCtx)
	log.Println("[server] bye")
}
