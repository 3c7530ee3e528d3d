package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"capas-server/internal/model"
	"capas-server/internal/portfolio"
)

type fakeSource struct {
	mu     sync.Mutex
	prices map[string]float64
	fail   map[string]bool
	calls  int32
}

func (f *fakeSource) GetTicker(ctx context.Context, market string) (model.Ticker, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[market] {
		return model.Ticker{}, context.DeadlineExceeded
	}
	return model.Ticker{Market: market, TradePrice: f.prices[market]}, nil
}

func TestPollerStopWaitsForLoop(t *testing.T) {
	var ticks int32
	p := New("test", 5*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&ticks, 1)
	})

	p.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	p.Stop()

	after := atomic.LoadInt32(&ticks)
	if after < 2 {
		t.Fatalf("got %d ticks before Stop, want at least 2", after)
	}
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got != after {
		t.Fatalf("poller ticked after Stop: %d -> %d", after, got)
	}
}

func TestPollerStopIdempotent(t *testing.T) {
	p := New("test", time.Millisecond, func(ctx context.Context) {})
	p.Stop() // never started
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}

func TestMarketRefreshEmitsTickers(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{"KRW-BTC": 42000}}
	got := make(chan model.Ticker, 8)

	g, err := model.NewGranularity("minutes", 1)
	if err != nil {
		t.Fatalf("NewGranularity: %v", err)
	}
	p := MarketRefresh(src, "KRW-BTC", g, func(tk model.Ticker) { got <- tk })
	p.interval = 5 * time.Millisecond // shrink for the test
	p.Start(context.Background())
	defer p.Stop()

	select {
	case tk := <-got:
		if tk.Market != "KRW-BTC" || tk.TradePrice != 42000 {
			t.Fatalf("ticker = %+v", tk)
		}
	case <-time.After(time.Second):
		t.Fatal("no ticker emitted")
	}
}

func TestHoldingsRefreshAppliesBatch(t *testing.T) {
	src := &fakeSource{
		prices: map[string]float64{"KRW-BTC": 42000, "KRW-ETH": 3000},
		fail:   map[string]bool{"KRW-ETH": true},
	}
	batches := make(chan portfolio.QuoteMap, 8)

	p := HoldingsRefresh(src,
		func() []string { return []string{"KRW-BTC", "KRW-ETH"} },
		5*time.Millisecond,
		func(q portfolio.QuoteMap) { batches <- q },
	)
	p.Start(context.Background())
	defer p.Stop()

	select {
	case batch := <-batches:
		if len(batch) != 2 {
			t.Fatalf("batch has %d quotes, want 2 (failed fetches stay in the batch)", len(batch))
		}
		if q := batch["KRW-BTC"]; !q.Known || q.Price != 42000 {
			t.Fatalf("KRW-BTC quote = %+v", q)
		}
		if q := batch["KRW-ETH"]; q.Known {
			t.Fatalf("KRW-ETH quote should be unknown after fetch failure, got %+v", q)
		}
	case <-time.After(time.Second):
		t.Fatal("no batch applied")
	}
}

func TestHoldingsRefreshSkipsEmptyPortfolio(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{}}
	var applied int32

	p := HoldingsRefresh(src,
		func() []string { return nil },
		time.Millisecond,
		func(q portfolio.QuoteMap) { atomic.AddInt32(&applied, 1) },
	)
	p.Start(context.Background())
	time.Sleep(15 * time.Millisecond)
	p.Stop()

	if atomic.LoadInt32(&applied) != 0 {
		t.Fatal("apply called with no holdings")
	}
	if atomic.LoadInt32(&src.calls) != 0 {
		t.Fatal("source queried with no holdings")
	}
}
