package portfolio

import "sort"

// Residue below this is treated as a fully-closed position rather than a
// phantom cost basis left behind by float arithmetic.
const qtyEpsilon = 1e-9

// Holding is a per-market position summarized by quantity and
// weighted-average cost. Quantity is always non-negative; a zero-quantity
// holding is removed from the map rather than reported.
type Holding struct {
	Market      string  `json:"market"`
	Quantity    float64 `json:"quantity"`
	TotalCost   float64 `json:"total_cost"`
	AverageCost float64 `json:"average_cost"`
}

// Holdings derives the current positions by replaying the full trade
// history in timestamp order. It is a recomputation, not an incremental
// mutation — calling it twice on the same history yields the same result.
//
// Standard weighted-average-cost accounting: buys add quantity and cost;
// sells remove quantity at the pre-sale average cost (not the sale price).
// A sell exceeding the held quantity is skipped as a no-op. A position
// whose quantity reaches zero resets its cost basis to exactly zero.
func Holdings(trades []TradeRecord) map[string]Holding {
	ordered := append([]TradeRecord(nil), trades...)
	sortTrades(ordered)
	return holdingsOf(ordered)
}

// holdingsOf replays an already-ordered history.
func holdingsOf(trades []TradeRecord) map[string]Holding {
	holdings := make(map[string]Holding)
	for _, t := range trades {
		h := holdings[t.Market]
		h.Market = t.Market

		switch t.Side {
		case SideBuy:
			h.Quantity += t.Quantity
			h.TotalCost += t.Cost()
			h.AverageCost = h.TotalCost / h.Quantity
		case SideSell:
			if t.Quantity > h.Quantity+qtyEpsilon {
				continue // over-sell in history: no-op
			}
			h.TotalCost -= h.AverageCost * t.Quantity
			h.Quantity -= t.Quantity
			if h.Quantity <= qtyEpsilon {
				h.Quantity = 0
				h.TotalCost = 0
				h.AverageCost = 0
			}
		}
		holdings[t.Market] = h
	}

	for market, h := range holdings {
		if h.Quantity == 0 {
			delete(holdings, market)
		}
	}
	return holdings
}

// SortedHoldings returns holdings as a slice ordered by market for stable
// presentation.
func SortedHoldings(holdings map[string]Holding) []Holding {
	out := make([]Holding, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}
