package portfolio

import "sort"

// Account is the virtual cash balance. CurrentCash is debited on buys and
// credited on sells.
type Account struct {
	InitialCash float64 `json:"initial_cash"`
	CurrentCash float64 `json:"current_cash"`
}

// State is the full accounting state: the cash account plus the
// append-only trade history. Values are treated as immutable; ApplyTrade
// returns a new State.
type State struct {
	Account Account       `json:"account"`
	Trades  []TradeRecord `json:"trades"`
}

// NewState creates a State with the given starting cash and no trades.
func NewState(initialCash float64) State {
	return State{Account: Account{InitialCash: initialCash, CurrentCash: initialCash}}
}

// ApplyTrade validates and applies one trade, returning the new state and
// the normalized record as stored (sells carry their realized profit).
//
// Rejections (insufficient cash on buy, insufficient holdings on sell,
// malformed record) leave the input state untouched — balance and history
// always move together.
//
// Ingestion is an upsert keyed by trade ID: re-applying a record with an
// ID already in the history replaces that record and replays the whole
// history, so duplicates never double-count.
func ApplyTrade(state State, trade TradeRecord) (State, TradeRecord, error) {
	trade, err := trade.Normalize()
	if err != nil {
		return state, TradeRecord{}, err
	}

	// Upsert: drop any previous record with the same ID, then rebuild
	// from a clean replay before admitting the new version.
	history := make([]TradeRecord, 0, len(state.Trades)+1)
	for _, t := range state.Trades {
		if t.ID != trade.ID {
			history = append(history, t)
		}
	}

	if trade.Side == SideBuy {
		if trade.Cost() > cashAfter(state.Account.InitialCash, history) {
			return state, TradeRecord{}, ErrInsufficientFunds
		}
	} else {
		// Average cost at the moment of sale: only trades executed
		// before this one count toward the basis.
		prior := make([]TradeRecord, 0, len(history))
		for _, t := range history {
			if t.Timestamp.Before(trade.Timestamp) || t.Timestamp.Equal(trade.Timestamp) && t.ID < trade.ID {
				prior = append(prior, t)
			}
		}
		holding := holdingsOf(prior)[trade.Market]
		if trade.Quantity > holding.Quantity {
			return state, TradeRecord{}, ErrInsufficientHoldings
		}
		// Realized P&L is locked in at the pre-sale average cost.
		trade.RealizedProfit = trade.Quantity * (trade.Price - holding.AverageCost)
	}

	history = append(history, trade)
	sortTrades(history)

	next := State{
		Account: Account{
			InitialCash: state.Account.InitialCash,
			CurrentCash: cashAfter(state.Account.InitialCash, history),
		},
		Trades: history,
	}
	return next, trade, nil
}

// cashAfter replays the history against the initial balance.
func cashAfter(initial float64, trades []TradeRecord) float64 {
	cash := initial
	for _, t := range trades {
		if t.Side == SideBuy {
			cash -= t.Cost()
		} else {
			cash += t.Cost()
		}
	}
	return cash
}

// sortTrades orders the history by timestamp, falling back to ID for a
// stable order between same-instant trades.
func sortTrades(trades []TradeRecord) {
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].Timestamp.Equal(trades[j].Timestamp) {
			return trades[i].ID < trades[j].ID
		}
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})
}
