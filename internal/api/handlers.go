package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"capas-server/internal/backtest"
	"capas-server/internal/exchange"
	"capas-server/internal/indicator"
	"capas-server/internal/model"
	"capas-server/internal/portfolio"
	"capas-server/internal/store/redis"
)

const (
	defaultCandleCount = 100
	maxCandleCount     = 200
	maxImportBytes     = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// observeUpstream records one exchange call's kind and latency.
func (s *Server) observeUpstream(kind string, start time.Time) {
	if s.metrics != nil {
		s.metrics.UpstreamCalls.WithLabelValues(kind).Inc()
		s.metrics.UpstreamDur.Observe(time.Since(start).Seconds())
	}
}

// upstreamError maps exchange failures to a single 502 response.
func (s *Server) upstreamError(w http.ResponseWriter, err error) {
	if s.metrics != nil {
		s.metrics.UpstreamErrors.Inc()
	}
	if errors.Is(err, exchange.ErrUnavailable) {
		writeError(w, http.StatusBadGateway, "exchange unavailable")
		return
	}
	log.Printf("[api] upstream error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) cacheGet(r *http.Request, kind, key string, out interface{}) bool {
	if s.cache.Get(r.Context(), key, out) {
		if s.metrics != nil {
			s.metrics.CacheHits.WithLabelValues(kind).Inc()
		}
		return true
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.WithLabelValues(kind).Inc()
	}
	return false
}

// GET /api/markets
func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := redis.MarketsKey()
	var markets []model.Market
	if s.cacheGet(r, "markets", key, &markets) {
		writeJSON(w, http.StatusOK, markets)
		return
	}

	start := time.Now()
	markets, err := s.exchange.ListMarkets(r.Context())
	s.observeUpstream("markets", start)
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	s.cache.Set(r.Context(), key, markets, redis.TTLMarkets)
	writeJSON(w, http.StatusOK, markets)
}

// GET /api/ticker/{market}
func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	market := strings.TrimPrefix(r.URL.Path, "/api/ticker/")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market is required")
		return
	}

	key := redis.TickerKey(market)
	var ticker model.Ticker
	if s.cacheGet(r, "ticker", key, &ticker) {
		writeJSON(w, http.StatusOK, ticker)
		return
	}

	start := time.Now()
	ticker, err := s.exchange.GetTicker(r.Context(), market)
	s.observeUpstream("ticker", start)
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	s.cache.Set(r.Context(), key, ticker, redis.TTLTicker)
	writeJSON(w, http.StatusOK, ticker)
}

// GET /api/candles/{market}?count=&unit=&minute=
func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	market := strings.TrimPrefix(r.URL.Path, "/api/candles/")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market is required")
		return
	}

	q := r.URL.Query()
	unit := q.Get("unit")
	if unit == "" {
		unit = "days"
	}
	minute := 0
	if v := q.Get("minute"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "minute must be an integer")
			return
		}
		minute = n
	}
	g, err := model.NewGranularity(unit, minute)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count := defaultCandleCount
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxCandleCount {
			writeError(w, http.StatusBadRequest, "count must be in [1, 200]")
			return
		}
		count = n
	}

	key := redis.CandleKey(market, g.Path(), count)
	var candles []model.Candle
	if s.cacheGet(r, "candles", key, &candles) {
		writeJSON(w, http.StatusOK, candles)
		return
	}

	start := time.Now()
	candles, err = s.exchange.GetCandles(r.Context(), market, count, g)
	s.observeUpstream("candles", start)
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	s.cache.Set(r.Context(), key, candles, redis.TTLCandles)
	writeJSON(w, http.StatusOK, candles)
}

// POST /api/indicators
func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Candles []model.Candle `json:"candles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	snap, err := indicator.Compute(req.Candles)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /api/backtest
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Candles []model.Candle  `json:"candles"`
		Params  backtest.Params `json:"params"`
		// InvestmentRatio, when positive, adds a cash projection against
		// the paper account's current balance.
		InvestmentRatio float64 `json:"investment_ratio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start := time.Now()
	result, err := backtest.Run(req.Candles, req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.BacktestRuns.Inc()
		s.metrics.BacktestDur.Observe(time.Since(start).Seconds())
	}

	resp := struct {
		backtest.Result
		Projection *backtest.CashProjection `json:"projection,omitempty"`
	}{Result: result}

	if req.InvestmentRatio > 0 {
		state := s.account.State()
		resp.Projection = backtest.ProjectCash(result,
			state.Account.InitialCash, state.Account.CurrentCash, req.InvestmentRatio)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/account
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	state := s.account.State()
	writeJSON(w, http.StatusOK, state)
}

// POST /api/account/trades
func (s *Server) handleAccountTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var trade portfolio.TradeRecord
	if err := json.NewDecoder(r.Body).Decode(&trade); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	applied, err := s.account.ApplyTrade(trade)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.TradesTotal.WithLabelValues(string(applied.Side)).Inc()
		}
		writeJSON(w, http.StatusOK, applied)
	case errors.Is(err, portfolio.ErrInsufficientFunds),
		errors.Is(err, portfolio.ErrInsufficientHoldings):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, portfolio.ErrInvalidTrade):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[api] apply trade: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// GET /api/account/holdings?quotes=live
func (s *Server) handleAccountHoldings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	extra := make(portfolio.QuoteMap)
	if r.URL.Query().Get("quotes") == "live" {
		for _, market := range s.account.HeldMarkets() {
			start := time.Now()
			t, err := s.exchange.GetTicker(r.Context(), market)
			s.observeUpstream("ticker", start)
			if err != nil {
				// unpriced holdings fall back to cost basis
				continue
			}
			extra[market] = portfolio.Quote{Price: t.TradePrice, Known: true}
		}
	}
	writeJSON(w, http.StatusOK, s.account.Valuation(extra))
}

// GET /api/account/export
func (s *Server) handleAccountExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := s.account.Export()
	if err != nil {
		log.Printf("[api] export: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="account.json"`)
	w.Write(data)
}

// POST /api/account/import
func (s *Server) handleAccountImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if err := s.account.Import(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"ws_clients": s.hub.ClientCount(),
	})
}

// GET /ws?market=KRW-BTC
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}
	s.hub.HandleConn(conn, r.URL.Query().Get("market"))
}
