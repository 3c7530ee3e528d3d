package api

import (
	"fmt"
	"log"
	"sync"

	"capas-server/internal/portfolio"
)

// AccountStore persists the paper-trading ledger between restarts.
type AccountStore interface {
	Load(initialCash float64) (portfolio.State, error)
	Save(state portfolio.State) error
	Reset() error
}

// AccountManager serializes access to the paper-trading account. The
// portfolio package is pure; this is the one place its state lives.
// Applying a trade updates balance and history together and persists
// the result before the new state becomes visible.
type AccountManager struct {
	mu     sync.RWMutex
	state  portfolio.State
	quotes portfolio.QuoteMap
	store  AccountStore
}

// NewAccountManager loads persisted state (seeding with initialCash on
// first run). store may be nil for an in-memory account.
func NewAccountManager(store AccountStore, initialCash float64) (*AccountManager, error) {
	m := &AccountManager{
		state:  portfolio.NewState(initialCash),
		quotes: make(portfolio.QuoteMap),
		store:  store,
	}
	if store != nil {
		state, err := store.Load(initialCash)
		if err != nil {
			return nil, fmt.Errorf("load account: %w", err)
		}
		m.state = state
		log.Printf("[account] loaded: cash=%.2f trades=%d", state.Account.CurrentCash, len(state.Trades))
	}
	return m, nil
}

// ApplyTrade validates, applies, and persists a trade. On an accounting
// violation the state is untouched and the sentinel error is returned.
func (m *AccountManager) ApplyTrade(trade portfolio.TradeRecord) (portfolio.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, applied, err := portfolio.ApplyTrade(m.state, trade)
	if err != nil {
		return portfolio.TradeRecord{}, err
	}
	if m.store != nil {
		if err := m.store.Save(next); err != nil {
			return portfolio.TradeRecord{}, fmt.Errorf("persist account: %w", err)
		}
	}
	m.state = next
	log.Printf("[account] %s %s qty=%g price=%g cash=%.2f",
		applied.Side, applied.Market, applied.Quantity, applied.Price, next.Account.CurrentCash)
	return applied, nil
}

// State returns a snapshot of the current ledger.
func (m *AccountManager) State() portfolio.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := m.state
	state.Trades = append([]portfolio.TradeRecord(nil), m.state.Trades...)
	return state
}

// HeldMarkets lists markets with a non-zero position, for the holdings
// refresh loop.
func (m *AccountManager) HeldMarkets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	holdings := portfolio.Holdings(m.state.Trades)
	markets := make([]string, 0, len(holdings))
	for _, h := range portfolio.SortedHoldings(holdings) {
		markets = append(markets, h.Market)
	}
	return markets
}

// SetQuotes replaces the cached quote batch. The whole batch swaps at
// once; a later sweep fully supersedes an earlier one.
func (m *AccountManager) SetQuotes(quotes portfolio.QuoteMap) {
	m.mu.Lock()
	m.quotes = quotes
	m.mu.Unlock()
}

// Valuation marks the account to the latest quote batch, merged with
// any extra quotes the caller fetched for this request.
func (m *AccountManager) Valuation(extra portfolio.QuoteMap) portfolio.Valuation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quotes := make(portfolio.QuoteMap, len(m.quotes)+len(extra))
	for k, v := range m.quotes {
		quotes[k] = v
	}
	for k, v := range extra {
		quotes[k] = v
	}
	return portfolio.Valuate(m.state, quotes)
}

// Export serializes the ledger for download.
func (m *AccountManager) Export() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return portfolio.ExportState(m.state)
}

// Import replaces the ledger with an exported snapshot and persists it.
func (m *AccountManager) Import(data []byte) error {
	state, err := portfolio.ImportState(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		if err := m.store.Reset(); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		if err := m.store.Save(state); err != nil {
			return fmt.Errorf("persist imported account: %w", err)
		}
	}
	m.state = state
	log.Printf("[account] imported: cash=%.2f trades=%d", state.Account.CurrentCash, len(state.Trades))
	return nil
}
