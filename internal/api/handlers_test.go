package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"capas-server/internal/exchange"
	"capas-server/internal/model"
	"capas-server/internal/portfolio"
)

type fakeExchange struct {
	markets []model.Market
	tickers map[string]model.Ticker
	candles []model.Candle
	err     error
}

func (f *fakeExchange) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return f.markets, f.err
}

func (f *fakeExchange) GetTicker(ctx context.Context, market string) (model.Ticker, error) {
	if f.err != nil {
		return model.Ticker{}, f.err
	}
	t, ok := f.tickers[market]
	if !ok {
		return model.Ticker{}, fmt.Errorf("%w: unknown market", exchange.ErrUnavailable)
	}
	return t, nil
}

func (f *fakeExchange) GetCandles(ctx context.Context, market string, count int, g model.Granularity) ([]model.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if count > len(f.candles) {
		count = len(f.candles)
	}
	return f.candles[:count], nil
}

func newTestServer(t *testing.T, ex *fakeExchange) *Server {
	t.Helper()
	account, err := NewAccountManager(nil, 1_000_000)
	if err != nil {
		t.Fatalf("NewAccountManager: %v", err)
	}
	return New("127.0.0.1:0", ex, nil, account, NewHub(nil), nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func chartCandles(n int, price float64) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		candles[i] = model.Candle{
			Market:       "KRW-BTC",
			DateTimeKST:  fmt.Sprintf("2026-01-%02dT09:00:00", i%28+1),
			OpeningPrice: price,
			HighPrice:    price,
			LowPrice:     price,
			TradePrice:   price,
			AccVolume:    100,
		}
	}
	return candles
}

func TestMarketsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{
		markets: []model.Market{
			{Market: "KRW-BTC", KoreanName: "비트코인", EnglishName: "Bitcoin"},
			{Market: "KRW-ETH", KoreanName: "이더리움", EnglishName: "Ethereum"},
		},
	})
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/markets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var markets []model.Market
	decode(t, rec, &markets)
	if len(markets) != 2 || markets[0].Market != "KRW-BTC" {
		t.Fatalf("markets = %+v", markets)
	}
}

func TestMarketsUpstreamDown(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{err: fmt.Errorf("%w: boom", exchange.ErrUnavailable)})
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/markets", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestCandlesRejectsBadGranularity(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{candles: chartCandles(10, 100)})

	for _, path := range []string{
		"/api/candles/KRW-BTC?unit=minutes&minute=7",
		"/api/candles/KRW-BTC?unit=hours",
		"/api/candles/KRW-BTC?count=0",
		"/api/candles/KRW-BTC?count=500",
	} {
		rec := doJSON(t, srv.Routes(), http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestCandlesFetch(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{candles: chartCandles(50, 100)})
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/candles/KRW-BTC?unit=minutes&minute=5&count=20", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var candles []model.Candle
	decode(t, rec, &candles)
	if len(candles) != 20 {
		t.Fatalf("got %d candles, want 20", len(candles))
	}
}

func TestIndicatorsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{})
	rec := doJSON(t, srv.Routes(), http.MethodPost, "/api/indicators",
		map[string]interface{}{"candles": chartCandles(80, 1000)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var snap struct {
		MA5 struct {
			Value float64 `json:"value"`
			Valid bool    `json:"valid"`
		} `json:"ma5"`
		CurrentPrice float64 `json:"current_price"`
	}
	decode(t, rec, &snap)
	if !snap.MA5.Valid || snap.MA5.Value != 1000 {
		t.Fatalf("ma5 = %+v, want valid 1000", snap.MA5)
	}
	if snap.CurrentPrice != 1000 {
		t.Fatalf("current price = %v, want 1000", snap.CurrentPrice)
	}
}

func TestIndicatorsRejectsEmpty(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{})
	rec := doJSON(t, srv.Routes(), http.MethodPost, "/api/indicators",
		map[string]interface{}{"candles": []model.Candle{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBacktestEndpointShortSeries(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{})
	rec := doJSON(t, srv.Routes(), http.MethodPost, "/api/backtest",
		map[string]interface{}{"candles": chartCandles(30, 100)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var result struct {
		TotalTrades int `json:"total_trades"`
	}
	decode(t, rec, &result)
	if result.TotalTrades != 0 {
		t.Fatalf("total trades = %d, want 0 on a short series", result.TotalTrades)
	}
}

func TestBacktestEndpointRejectsBadParams(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{})
	rec := doJSON(t, srv.Routes(), http.MethodPost, "/api/backtest", map[string]interface{}{
		"candles": chartCandles(100, 100),
		"params":  map[string]interface{}{"target_profit_pct": -5},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTradeLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{
		tickers: map[string]model.Ticker{
			"KRW-BTC": {Market: "KRW-BTC", TradePrice: 60000},
		},
	})
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/api/account/trades", portfolio.TradeRecord{
		ID: "t1", Market: "KRW-BTC", Side: portfolio.SideBuy, Quantity: 10, Price: 50000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy status = %d body=%s", rec.Code, rec.Body.String())
	}

	// oversized buy is an accounting violation, not a bad request
	rec = doJSON(t, routes, http.MethodPost, "/api/account/trades", portfolio.TradeRecord{
		ID: "t2", Market: "KRW-BTC", Side: portfolio.SideBuy, Quantity: 100, Price: 50000,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("oversized buy status = %d, want 422", rec.Code)
	}

	// malformed trade is a bad request
	rec = doJSON(t, routes, http.MethodPost, "/api/account/trades", portfolio.TradeRecord{
		ID: "t3", Market: "KRW-BTC", Side: "short", Quantity: 1, Price: 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed trade status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, routes, http.MethodGet, "/api/account", nil)
	var state portfolio.State
	decode(t, rec, &state)
	if state.Account.CurrentCash != 500_000 {
		t.Fatalf("cash = %v, want 500000", state.Account.CurrentCash)
	}
	if len(state.Trades) != 1 {
		t.Fatalf("trades = %d, want 1 (rejected trades must not appear)", len(state.Trades))
	}

	rec = doJSON(t, routes, http.MethodGet, "/api/account/holdings?quotes=live", nil)
	var val portfolio.Valuation
	decode(t, rec, &val)
	if !val.AllPriced {
		t.Fatal("holdings should be fully priced from live quotes")
	}
	if val.TotalAssets != 500_000+10*60000 {
		t.Fatalf("total assets = %v, want 1100000", val.TotalAssets)
	}
}

func TestExportImportEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{})
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/api/account/trades", portfolio.TradeRecord{
		ID: "t1", Market: "KRW-ETH", Side: portfolio.SideBuy, Quantity: 2, Price: 1000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy status = %d", rec.Code)
	}

	rec = doJSON(t, routes, http.MethodGet, "/api/account/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	exported := rec.Body.String()

	// import into a fresh server
	srv2 := newTestServer(t, &fakeExchange{})
	routes2 := srv2.Routes()
	req := httptest.NewRequest(http.MethodPost, "/api/account/import", strings.NewReader(exported))
	rec2 := httptest.NewRecorder()
	routes2.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("import status = %d body=%s", rec2.Code, rec2.Body.String())
	}

	rec2 = doJSON(t, routes2, http.MethodGet, "/api/account", nil)
	var state portfolio.State
	decode(t, rec2, &state)
	if len(state.Trades) != 1 || state.Trades[0].ID != "t1" {
		t.Fatalf("imported trades = %+v", state.Trades)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{})
	req := httptest.NewRequest(http.MethodPost, "/api/account/import", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{})
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("health body = %v", body)
	}
}
