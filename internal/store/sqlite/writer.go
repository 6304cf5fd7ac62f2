// Package sqlite persists klines, pair configs, and backtest results.
// Prices and quantities are stored as decimal strings so values round-trip
// the database exactly as they came off the exchange.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"tradebotv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const klineBatchSize = 500

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/klines.db"
}

// Writer owns the schema and all mutations: kline import, pair config CRUD,
// backtest result tables.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS klines (
			symbol     TEXT    NOT NULL,
			tf         TEXT    NOT NULL,
			open_time  INTEGER NOT NULL,
			open       TEXT    NOT NULL,
			high       TEXT    NOT NULL,
			low        TEXT    NOT NULL,
			close      TEXT    NOT NULL,
			volume     TEXT    NOT NULL,
			PRIMARY KEY (symbol, tf, open_time)
		);

		CREATE TABLE IF NOT EXISTS pair_configs (
			symbol     TEXT    PRIMARY KEY,
			tf         TEXT    NOT NULL,
			cash       TEXT    NOT NULL,
			commission TEXT    NOT NULL,
			enabled    INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id      TEXT    PRIMARY KEY,
			symbol      TEXT    NOT NULL,
			tf          TEXT    NOT NULL,
			strategy    TEXT    NOT NULL,
			bars        INTEGER NOT NULL,
			start_cash  TEXT    NOT NULL,
			final_value TEXT    NOT NULL,
			created_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS backtest_fills (
			run_id     TEXT    NOT NULL,
			order_id   INTEGER NOT NULL,
			symbol     TEXT    NOT NULL,
			side       TEXT    NOT NULL,
			stop_price TEXT    NOT NULL,
			qty        TEXT    NOT NULL,
			quote_qty  TEXT    NOT NULL,
			fill_time  INTEGER NOT NULL,
			PRIMARY KEY (run_id, order_id)
		);
	`)
	return err
}

// InsertKlines writes klines in batched transactions, replacing rows with
// the same (symbol, tf, open_time). Returns the number of rows written.
func (w *Writer) InsertKlines(klines []model.Kline) (int, error) {
	written := 0
	for start := 0; start < len(klines); start += klineBatchSize {
		end := start + klineBatchSize
		if end > len(klines) {
			end = len(klines)
		}
		if err := w.insertKlineBatch(klines[start:end]); err != nil {
			return written, err
		}
		written += end - start
	}
	return written, nil
}

func (w *Writer) insertKlineBatch(batch []model.Kline) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO klines (symbol, tf, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare klines: %w", err)
	}
	defer stmt.Close()

	for _, k := range batch {
		if _, err := stmt.Exec(k.Symbol, k.TF, k.OpenTime,
			k.Open.String(), k.High.String(), k.Low.String(), k.Close.String(), k.Volume.String()); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert kline: %w", err)
		}
	}
	return tx.Commit()
}

// RunRecord is one row of the backtest_runs table.
type RunRecord struct {
	RunID      string `json:"run_id"`
	Symbol     string `json:"symbol"`
	TF         string `json:"tf"`
	Strategy   string `json:"strategy"`
	Bars       int    `json:"bars"`
	StartCash  string `json:"start_cash"`
	FinalValue string `json:"final_value"`
	CreatedAt  int64  `json:"created_at"`
}

// FillRow is one row of the backtest_fills table.
type FillRow struct {
	RunID     string `json:"run_id"`
	OrderID   int64  `json:"order_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	StopPrice string `json:"stop_price"`
	Qty       string `json:"qty"`
	QuoteQty  string `json:"quote_qty"`
	FillTime  int64  `json:"fill_time"`
}

// ResetResults clears the result tables. Called before every run so a run's
// rows never mix with a previous run's.
func (w *Writer) ResetResults() error {
	if _, err := w.db.Exec(`DELETE FROM backtest_fills`); err != nil {
		return fmt.Errorf("sqlite reset fills: %w", err)
	}
	if _, err := w.db.Exec(`DELETE FROM backtest_runs`); err != nil {
		return fmt.Errorf("sqlite reset runs: %w", err)
	}
	return nil
}

// InsertRun writes one completed run.
func (w *Writer) InsertRun(rec RunRecord) error {
	_, err := w.db.Exec(`
		INSERT INTO backtest_runs (run_id, symbol, tf, strategy, bars, start_cash, final_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Symbol, rec.TF, rec.Strategy, rec.Bars, rec.StartCash, rec.FinalValue, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite insert run: %w", err)
	}
	return nil
}

// InsertFills writes a run's fills in one transaction.
func (w *Writer) InsertFills(runID string, fills []model.Order) error {
	if len(fills) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO backtest_fills (run_id, order_id, symbol, side, stop_price, qty, quote_qty, fill_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare fills: %w", err)
	}
	defer stmt.Close()

	for _, f := range fills {
		if _, err := stmt.Exec(runID, f.OrderID, f.Symbol, string(f.Side),
			f.StopPrice.String(), f.ExecutedQty.String(), f.CummulativeQuoteQty.String(), f.UpdateTime); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert fill: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns returns runs newest first, truncated to limit (0 = all).
func (w *Writer) ListRuns(limit int) ([]RunRecord, error) {
	query := `
		SELECT run_id, symbol, tf, strategy, bars, start_cash, final_value, created_at
		FROM backtest_runs ORDER BY created_at DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := w.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Symbol, &r.TF, &r.Strategy, &r.Bars, &r.StartCash, &r.FinalValue, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFills returns one run's fills in ascending order id.
func (w *Writer) ListFills(runID string) ([]FillRow, error) {
	rows, err := w.db.Query(`
		SELECT run_id, order_id, symbol, side, stop_price, qty, quote_qty, fill_time
		FROM backtest_fills WHERE run_id = ? ORDER BY order_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query fills: %w", err)
	}
	defer rows.Close()

	var out []FillRow
	for rows.Next() {
		var f FillRow
		if err := rows.Scan(&f.RunID, &f.OrderID, &f.Symbol, &f.Side, &f.StopPrice, &f.Qty, &f.QuoteQty, &f.FillTime); err != nil {
			return nil, fmt.Errorf("sqlite scan fill: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpsertPairConfig creates or updates a pair config row.
func (w *Writer) UpsertPairConfig(pc model.PairConfig) error {
	enabled := 0
	if pc.Enabled {
		enabled = 1
	}
	_, err := w.db.Exec(`
		INSERT INTO pair_configs (symbol, tf, cash, commission, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			tf = excluded.tf,
			cash = excluded.cash,
			commission = excluded.commission,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, pc.Symbol, pc.TF, pc.Cash, pc.Commission, enabled, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite upsert pair config: %w", err)
	}
	return nil
}

// GetPairConfig returns one pair config, or sql.ErrNoRows wrapped.
func (w *Writer) GetPairConfig(symbol string) (model.PairConfig, error) {
	var pc model.PairConfig
	var enabled int
	err := w.db.QueryRow(`
		SELECT symbol, tf, cash, commission, enabled, updated_at
		FROM pair_configs WHERE symbol = ?
	`, symbol).Scan(&pc.Symbol, &pc.TF, &pc.Cash, &pc.Commission, &enabled, &pc.UpdatedAt)
	if err != nil {
		return model.PairConfig{}, fmt.Errorf("sqlite get pair config %s: %w", symbol, err)
	}
	pc.Enabled = enabled != 0
	return pc, nil
}

// ListPairConfigs returns all pair configs ordered by symbol.
func (w *Writer) ListPairConfigs() ([]model.PairConfig, error) {
	rows, err := w.db.Query(`
		SELECT symbol, tf, cash, commission, enabled, updated_at
		FROM pair_configs ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query pair configs: %w", err)
	}
	defer rows.Close()

	var out []model.PairConfig
	for rows.Next() {
		var pc model.PairConfig
		var enabled int
		if err := rows.Scan(&pc.Symbol, &pc.TF, &pc.Cash, &pc.Commission, &enabled, &pc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan pair config: %w", err)
		}
		pc.Enabled = enabled != 0
		out = append(out, pc)
	}
	return out, rows.Err()
}

// DeletePairConfig removes a pair config. Deleting an unknown symbol is an
// error so the admin UI can surface typos.
func (w *Writer) DeletePairConfig(symbol string) error {
	res, err := w.db.Exec(`DELETE FROM pair_configs WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("sqlite delete pair config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite delete pair config: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite delete pair config: %s: %w", symbol, sql.ErrNoRows)
	}
	return nil
}

// ProfitRow summarizes the runs of one symbol for the profit view.
type ProfitRow struct {
	Symbol     string `json:"symbol"`
	Runs       int    `json:"runs"`
	StartCash  string `json:"start_cash"`  // of the latest run
	FinalValue string `json:"final_value"` // of the latest run
	LastRunAt  int64  `json:"last_run_at"`
}

// ProfitSummary aggregates runs per symbol, with the latest run's cash and
// final value.
func (w *Writer) ProfitSummary() ([]ProfitRow, error) {
	rows, err := w.db.Query(`
		SELECT r.symbol,
		       COUNT(*),
		       (SELECT start_cash FROM backtest_runs x WHERE x.symbol = r.symbol ORDER BY created_at DESC, run_id DESC LIMIT 1),
		       (SELECT final_value FROM backtest_runs x WHERE x.symbol = r.symbol ORDER BY created_at DESC, run_id DESC LIMIT 1),
		       MAX(r.created_at)
		FROM backtest_runs r
		GROUP BY r.symbol
		ORDER BY r.symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query profit summary: %w", err)
	}
	defer rows.Close()

	var out []ProfitRow
	for rows.Next() {
		var p ProfitRow
		if err := rows.Scan(&p.Symbol, &p.Runs, &p.StartCash, &p.FinalValue, &p.LastRunAt); err != nil {
			return nil, fmt.Errorf("sqlite scan profit summary: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the writer.
func (w *Writer) Close() error {
	return w.db.Close()
}
