// Package api exposes the dashboard's HTTP surface: market data proxied
// through the exchange client and cache, the indicator and backtest
// engines, the paper-trading account, and a live ticker WebSocket.
package api

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"capas-server/internal/exchange"
	"capas-server/internal/logger"
	"capas-server/internal/metrics"
	"capas-server/internal/model"
	"capas-server/internal/store/redis"
)

// Exchange is the slice of the upstream client the handlers use.
type Exchange interface {
	ListMarkets(ctx context.Context) ([]model.Market, error)
	GetTicker(ctx context.Context, market string) (model.Ticker, error)
	GetCandles(ctx context.Context, market string, count int, g model.Granularity) ([]model.Candle, error)
}

var _ Exchange = (*exchange.Client)(nil)

// Server wires the handlers to their dependencies.
type Server struct {
	exchange Exchange
	cache    *redis.Cache
	account  *AccountManager
	hub      *Hub
	metrics  *metrics.Metrics
	started  time.Time

	srv *http.Server
}

// New assembles the API server. cache may be nil (no caching) and
// metrics may be nil (no instrumentation).
func New(addr string, ex Exchange, cache *redis.Cache, account *AccountManager, hub *Hub, m *metrics.Metrics) *Server {
	s := &Server{
		exchange: ex,
		cache:    cache,
		account:  account,
		hub:      hub,
		metrics:  m,
		started:  time.Now(),
	}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Routes builds the HTTP mux. Exposed for handler tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/markets", s.instrument("markets", s.handleMarkets))
	mux.HandleFunc("/api/ticker/", s.instrument("ticker", s.handleTicker))
	mux.HandleFunc("/api/candles/", s.instrument("candles", s.handleCandles))
	mux.HandleFunc("/api/indicators", s.instrument("indicators", s.handleIndicators))
	mux.HandleFunc("/api/backtest", s.instrument("backtest", s.handleBacktest))

	mux.HandleFunc("/api/account", s.instrument("account", s.handleAccount))
	mux.HandleFunc("/api/account/trades", s.instrument("account_trades", s.handleAccountTrades))
	mux.HandleFunc("/api/account/holdings", s.instrument("account_holdings", s.handleAccountHoldings))
	mux.HandleFunc("/api/account/export", s.instrument("account_export", s.handleAccountExport))
	mux.HandleFunc("/api/account/import", s.instrument("account_import", s.handleAccountImport))

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)

	return mux
}

// instrument wraps a handler with CORS, method-independent OPTIONS
// handling, and request metrics.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		ctx := logger.WithRequestID(r.Context(), logger.NewRequestID(endpoint, start))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r.WithContext(ctx))

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(endpoint, statusClass(sw.status)).Inc()
			s.metrics.RequestDur.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
		slog.Debug("request served",
			append([]any{
				slog.String("endpoint", endpoint),
				slog.Int("status", sw.status),
				slog.Duration("elapsed", time.Since(start)),
			}, logger.WithRequest(ctx)...)...)
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
