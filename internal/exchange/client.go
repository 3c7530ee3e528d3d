// Package exchange implements the market data gateway client for the
// Bithumb v1 public REST API (Upbit-compatible payloads).
//
// All calls honor a minimum inter-request spacing to respect the
// upstream rate limit, carry a request timeout, and classify every
// failure — transport error or non-2xx status — as the single
// ErrUnavailable condition. Callers decide retry policy.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"capas-server/internal/model"
)

// ErrUnavailable is the single classified condition for any upstream
// failure. Check with errors.Is.
var ErrUnavailable = errors.New("exchange: upstream unavailable")

const (
	// DefaultBaseURL is the Bithumb v1 public REST endpoint.
	DefaultBaseURL = "https://api.bithumb.com/v1"

	// defaultSpacing is the minimum gap between requests from one client.
	defaultSpacing = 100 * time.Millisecond

	// defaultTimeout bounds each request end to end.
	defaultTimeout = 8 * time.Second

	// maxCandleCount is the upstream per-request candle limit.
	maxCandleCount = 200
)

// Config configures the exchange client.
type Config struct {
	BaseURL string        // defaults to DefaultBaseURL
	Spacing time.Duration // min inter-request gap, defaults to 100ms
	Timeout time.Duration // per-request timeout, defaults to 8s
	Quote   string        // quote currency filter, defaults to "KRW"
}

// Client is a rate-limited Bithumb REST client.
type Client struct {
	baseURL string
	quote   string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client with the given configuration.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = defaultSpacing
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Quote == "" {
		cfg.Quote = "KRW"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		quote:   cfg.Quote,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Spacing), 1),
	}
}

// ListMarkets fetches all markets and filters them to the configured
// quote currency.
func (c *Client) ListMarkets(ctx context.Context) ([]model.Market, error) {
	var all []model.Market
	if err := c.get(ctx, "/market/all?isDetails=true", &all); err != nil {
		return nil, err
	}

	prefix := c.quote + "-"
	markets := all[:0]
	for _, m := range all {
		if strings.HasPrefix(m.Market, prefix) {
			markets = append(markets, m)
		}
	}
	log.Printf("[exchange] listed %d %s markets", len(markets), c.quote)
	return markets, nil
}

// GetTicker fetches the current price snapshot for one market.
func (c *Client) GetTicker(ctx context.Context, market string) (model.Ticker, error) {
	var tickers []model.Ticker
	if err := c.get(ctx, "/ticker?markets="+market, &tickers); err != nil {
		return model.Ticker{}, err
	}
	if len(tickers) == 0 {
		return model.Ticker{}, fmt.Errorf("%w: empty ticker response for %s", ErrUnavailable, market)
	}
	return tickers[0], nil
}

// GetCandles fetches up to count candles for the market at the given
// granularity. The upstream returns newest-first; the result is reversed
// to oldest-first, the order every consumer in this repo assumes.
func (c *Client) GetCandles(ctx context.Context, market string, count int, g model.Granularity) ([]model.Candle, error) {
	if count <= 0 || count > maxCandleCount {
		count = maxCandleCount
	}

	path := fmt.Sprintf("/%s?market=%s&count=%d", g.Path(), market, count)
	var candles []model.Candle
	if err := c.get(ctx, path, &candles); err != nil {
		return nil, err
	}

	// Newest-first -> oldest-first.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// get performs one rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d on %s", ErrUnavailable, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
