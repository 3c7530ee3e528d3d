// Package poller runs the periodic price-refresh loops behind the
// dashboard: one tracking the selected market at chart resolution and
// one revaluing held assets on a slower fixed cadence.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"capas-server/internal/exchange"
	"capas-server/internal/model"
	"capas-server/internal/portfolio"
)

const tickTimeout = 10 * time.Second

// Poller drives a single refresh loop. Start launches it, Stop cancels
// it and waits for the loop goroutine to exit; there are no orphaned
// tickers after Stop returns.
type Poller struct {
	name     string
	interval time.Duration
	tick     func(context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a poller that calls tick every interval. The first tick
// fires immediately on Start.
func New(name string, interval time.Duration, tick func(context.Context)) *Poller {
	return &Poller{name: name, interval: interval, tick: tick}
}

// Start launches the loop. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	done := p.done
	go func() {
		defer close(done)
		log.Printf("[poller] %s started (every %s)", p.name, p.interval)

		p.runTick(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("[poller] %s stopped", p.name)
				return
			case <-ticker.C:
				p.runTick(ctx)
			}
		}
	}()
}

func (p *Poller) runTick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()
	p.tick(tctx)
}

// Stop cancels the loop and blocks until it has exited. Safe to call
// multiple times and on a never-started poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// tickerSource is the slice of the exchange client the pollers need.
type tickerSource interface {
	GetTicker(ctx context.Context, market string) (model.Ticker, error)
}

// MarketRefresh polls the selected market's ticker at the chart's
// natural refresh rate and hands each snapshot to emit.
func MarketRefresh(src tickerSource, market string, g model.Granularity, emit func(model.Ticker)) *Poller {
	return New("market:"+market, g.RefreshInterval(), func(ctx context.Context) {
		t, err := src.GetTicker(ctx, market)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("[poller] ticker %s: %v", market, err)
			}
			return
		}
		emit(t)
	})
}

// HoldingsRefresh revalues every held market on a fixed cadence. All
// quotes for one sweep are collected first and applied as a single
// batch, so a partially failed sweep never mixes price generations;
// markets whose fetch failed are reported as unknown in that batch.
func HoldingsRefresh(src tickerSource, markets func() []string, every time.Duration, apply func(portfolio.QuoteMap)) *Poller {
	return New("holdings", every, func(ctx context.Context) {
		held := markets()
		if len(held) == 0 {
			return
		}
		quotes := make(portfolio.QuoteMap, len(held))
		for _, m := range held {
			t, err := src.GetTicker(ctx, m)
			if err != nil {
				if errors.Is(err, exchange.ErrUnavailable) {
					log.Printf("[poller] holdings quote %s unavailable", m)
				}
				quotes[m] = portfolio.Quote{}
				continue
			}
			quotes[m] = portfolio.Quote{Price: t.TradePrice, Known: true}
		}
		apply(quotes)
	})
}
