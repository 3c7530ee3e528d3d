// Package sqlite persists the paper-trading account so the ledger
// survives restarts. One account row plus an append-mostly trade table;
// trade upserts are keyed by trade ID.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"capas-server/internal/portfolio"
)

const schema = `
CREATE TABLE IF NOT EXISTS account (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	initial_cash  REAL NOT NULL,
	current_cash  REAL NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	id              TEXT PRIMARY KEY,
	market          TEXT NOT NULL,
	side            TEXT NOT NULL,
	quantity        REAL NOT NULL,
	price           REAL NOT NULL,
	ts              TEXT NOT NULL,
	realized_profit REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades (ts);
`

// Store is the SQLite-backed account store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Printf("[store] sqlite ready at %s", path)
	return &Store{db: db}, nil
}

// Load reads the persisted account state. When no account row exists yet
// it returns a fresh state seeded with initialCash.
func (s *Store) Load(initialCash float64) (portfolio.State, error) {
	var state portfolio.State

	row := s.db.QueryRow(`SELECT initial_cash, current_cash FROM account WHERE id = 1`)
	err := row.Scan(&state.Account.InitialCash, &state.Account.CurrentCash)
	if err == sql.ErrNoRows {
		return portfolio.NewState(initialCash), nil
	}
	if err != nil {
		return state, fmt.Errorf("load account: %w", err)
	}

	rows, err := s.db.Query(`SELECT id, market, side, quantity, price, ts, realized_profit FROM trades ORDER BY ts, id`)
	if err != nil {
		return state, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t portfolio.TradeRecord
		var ts string
		if err := rows.Scan(&t.ID, &t.Market, &t.Side, &t.Quantity, &t.Price, &ts, &t.RealizedProfit); err != nil {
			return state, fmt.Errorf("scan trade: %w", err)
		}
		t.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return state, fmt.Errorf("parse trade time %q: %w", ts, err)
		}
		state.Trades = append(state.Trades, t)
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("load trades: %w", err)
	}
	return state, nil
}

// Save writes the full account state in one transaction. Trades are
// upserted by ID so replays after a crash are harmless.
func (s *Store) Save(state portfolio.State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO account (id, initial_cash, current_cash, updated_at) VALUES (1, ?, ?, ?)`,
		state.Account.InitialCash, state.Account.CurrentCash, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO trades (id, market, side, quantity, price, ts, realized_profit) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare trade upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range state.Trades {
		_, err := stmt.Exec(t.ID, t.Market, string(t.Side), t.Quantity, t.Price,
			t.Timestamp.UTC().Format(time.RFC3339Nano), t.RealizedProfit)
		if err != nil {
			return fmt.Errorf("save trade %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// Reset clears all persisted state.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM trades`); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM account`); err != nil {
		return fmt.Errorf("clear account: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
