package metrics

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard backend.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec // labels: endpoint, status
	RequestDur    *prometheus.HistogramVec

	// Upstream exchange calls
	UpstreamCalls  *prometheus.CounterVec // labels: kind
	UpstreamErrors prometheus.Counter
	UpstreamDur    prometheus.Histogram

	// Response cache
	CacheHits   *prometheus.CounterVec // labels: kind
	CacheMisses *prometheus.CounterVec

	// Backtest engine
	BacktestRuns prometheus.Counter
	BacktestDur  prometheus.Histogram

	// Paper trading
	TradesTotal *prometheus.CounterVec // labels: side

	// WebSocket ticker stream
	WSClients prometheus.Gauge
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capas_http_requests_total",
			Help: "HTTP requests served, by endpoint and status class",
		}, []string{"endpoint", "status"}),
		RequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capas_http_request_duration_seconds",
			Help:    "HTTP request latency by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capas_upstream_calls_total",
			Help: "Exchange API calls by kind (markets, ticker, candles)",
		}, []string{"kind"}),
		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capas_upstream_errors_total",
			Help: "Exchange API calls that failed",
		}),
		UpstreamDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capas_upstream_duration_seconds",
			Help:    "Exchange API call latency",
			Buckets: prometheus.DefBuckets,
		}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capas_cache_hits_total",
			Help: "Response cache hits by kind",
		}, []string{"kind"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capas_cache_misses_total",
			Help: "Response cache misses by kind",
		}, []string{"kind"}),

		BacktestRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capas_backtest_runs_total",
			Help: "Backtest simulations executed",
		}),
		BacktestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capas_backtest_duration_seconds",
			Help:    "Backtest simulation latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capas_paper_trades_total",
			Help: "Paper trades accepted, by side",
		}, []string{"side"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "capas_ws_clients",
			Help: "Connected ticker stream clients",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDur,
		m.UpstreamCalls,
		m.UpstreamErrors,
		m.UpstreamDur,
		m.CacheHits,
		m.CacheMisses,
		m.BacktestRuns,
		m.BacktestDur,
		m.TradesTotal,
		m.WSClients,
	)

	return m
}

// Server runs a dedicated HTTP server exposing /metrics.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates the metrics server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
