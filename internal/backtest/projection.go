package backtest

// CashProjection maps a percentage-based backtest run onto a virtual cash
// balance, splitting the invested amount equally across trades.
type CashProjection struct {
	InvestmentAmount float64          `json:"investment_amount"`
	TotalProfit      float64          `json:"total_profit"`
	TotalLoss        float64          `json:"total_loss"`
	NetProfit        float64          `json:"net_profit"`
	FinalBalance     float64          `json:"final_balance"`
	TotalReturnPct   float64          `json:"total_return_pct"`
	Trades           []ProjectedTrade `json:"trades"`
}

// ProjectedTrade is one backtest trade with cash amounts attached.
type ProjectedTrade struct {
	Trade
	InvestedAmount float64 `json:"invested_amount"`
	ProfitAmount   float64 `json:"profit_amount"`
}

// ProjectCash converts a Result's percentage returns into cash amounts
// against the given balance. investmentRatio is the fraction of the
// initial balance put to work (1.0 = all of it). Returns nil when there is
// nothing to project.
func ProjectCash(result Result, initialCash, currentCash, investmentRatio float64) *CashProjection {
	if initialCash <= 0 || result.TotalTrades == 0 || len(result.Trades) == 0 {
		return nil
	}
	if investmentRatio <= 0 || investmentRatio > 1 {
		investmentRatio = 1
	}

	investment := initialCash * investmentRatio
	perTrade := investment / float64(len(result.Trades))

	proj := &CashProjection{
		InvestmentAmount: investment,
		Trades:           make([]ProjectedTrade, 0, len(result.Trades)),
	}

	for _, t := range result.Trades {
		amount := perTrade * t.ProfitPct / 100
		if amount > 0 {
			proj.TotalProfit += amount
		} else {
			proj.TotalLoss -= amount
		}
		proj.Trades = append(proj.Trades, ProjectedTrade{
			Trade:          t,
			InvestedAmount: perTrade,
			ProfitAmount:   amount,
		})
	}

	proj.NetProfit = proj.TotalProfit - proj.TotalLoss
	proj.FinalBalance = currentCash + proj.NetProfit
	proj.TotalReturnPct = round2(proj.NetProfit / investment * 100)
	return proj
}
