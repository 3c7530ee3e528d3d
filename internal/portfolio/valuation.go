package portfolio

// Quote is a live price observation. Known distinguishes "no price
// available" from a price of zero; a holding without a known quote is
// never silently valued at zero.
type Quote struct {
	Price float64 `json:"price"`
	Known bool    `json:"known"`
}

// QuoteMap maps market symbol to its latest quote.
type QuoteMap map[string]Quote

// ValuedHolding is a holding marked against a live price.
type ValuedHolding struct {
	Holding
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	// Valued is false when no live price was available; the numeric
	// fields above are then meaningless and must not be read as "zero
	// profit".
	Valued bool `json:"valued"`
}

// Unrealized marks every holding to market. Holdings without a known
// quote come back with Valued=false.
func Unrealized(holdings map[string]Holding, quotes QuoteMap) []ValuedHolding {
	out := make([]ValuedHolding, 0, len(holdings))
	for _, h := range SortedHoldings(holdings) {
		vh := ValuedHolding{Holding: h}
		if q, ok := quotes[h.Market]; ok && q.Known {
			vh.CurrentPrice = q.Price
			vh.MarketValue = h.Quantity * q.Price
			vh.UnrealizedPnL = vh.MarketValue - h.TotalCost
			vh.Valued = true
		}
		out = append(out, vh)
	}
	return out
}

// Valuation is the total-asset picture of an account at a set of quotes.
type Valuation struct {
	Cash          float64         `json:"cash"`
	HoldingsValue float64         `json:"holdings_value"`
	TotalAssets   float64         `json:"total_assets"`
	UnrealizedPnL float64         `json:"unrealized_pnl"`
	RealizedPnL   float64         `json:"realized_pnl"`
	Holdings      []ValuedHolding `json:"holdings"`
	// AllPriced is false when at least one holding lacked a live quote
	// and contributed its cost basis instead of market value.
	AllPriced bool `json:"all_priced"`
}

// Valuate computes total assets: cash plus mark-to-market value of every
// held asset. A holding without a known price contributes its cost basis
// as a documented fallback, and AllPriced flags the degradation.
func Valuate(state State, quotes QuoteMap) Valuation {
	holdings := Holdings(state.Trades)
	valued := Unrealized(holdings, quotes)

	v := Valuation{
		Cash:      state.Account.CurrentCash,
		Holdings:  valued,
		AllPriced: true,
	}
	for _, vh := range valued {
		if vh.Valued {
			v.HoldingsValue += vh.MarketValue
			v.UnrealizedPnL += vh.UnrealizedPnL
		} else {
			v.HoldingsValue += vh.TotalCost
			v.AllPriced = false
		}
	}
	for _, t := range state.Trades {
		if t.Side == SideSell {
			v.RealizedPnL += t.RealizedProfit
		}
	}
	v.TotalAssets = v.Cash + v.HoldingsValue
	return v
}
