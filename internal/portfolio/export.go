package portfolio

import (
	"encoding/json"
	"fmt"
)

// exportVersion guards the export format for forward compatibility.
const exportVersion = 1

type exportEnvelope struct {
	Version int           `json:"version"`
	Account Account       `json:"account"`
	Trades  []TradeRecord `json:"trades"`
}

// ExportState serializes the full accounting state to JSON. Numbers are
// emitted as numbers; an export/import round trip reproduces the state
// field for field.
func ExportState(state State) ([]byte, error) {
	env := exportEnvelope{
		Version: exportVersion,
		Account: state.Account,
		Trades:  state.Trades,
	}
	return json.MarshalIndent(env, "", "  ")
}

// ImportState parses a previously exported state. Every trade record is
// normalized on the way in so a hand-edited file cannot smuggle malformed
// records past the accounting invariants.
func ImportState(data []byte) (State, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return State{}, fmt.Errorf("portfolio: parse export: %w", err)
	}
	if env.Version != exportVersion {
		return State{}, fmt.Errorf("portfolio: unsupported export version %d", env.Version)
	}

	state := State{Account: env.Account}
	for _, t := range env.Trades {
		normalized, err := t.Normalize()
		if err != nil {
			return State{}, fmt.Errorf("portfolio: trade %s: %w", t.ID, err)
		}
		// Sells keep their recorded realized profit; it was locked in
		// at sale time and is not recomputed on import.
		if t.Side == SideSell {
			normalized.RealizedProfit = t.RealizedProfit
		}
		state.Trades = append(state.Trades, normalized)
	}
	sortTrades(state.Trades)
	return state, nil
}
