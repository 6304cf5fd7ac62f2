package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"tradebotv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the kline table. It is the data
// loader of the backtester: rows come back exactly as persisted, ordered
// ascending by open_time, deduplicated by the table's primary key. No
// resampling, gap-filling, or field rewriting happens here.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadKlines reads the klines of one (symbol, tf) series, ordered by
// open_time ascending. fromMS/toMS bound open_time inclusively; 0 means
// unbounded on that side.
func (r *Reader) ReadKlines(symbol, tf string, fromMS, toMS int64) ([]model.Kline, error) {
	query := `
		SELECT symbol, tf, open_time, open, high, low, close, volume
		FROM klines
		WHERE symbol = ? AND tf = ?`
	args := []any{symbol, tf}
	if fromMS != 0 {
		query += " AND open_time >= ?"
		args = append(args, fromMS)
	}
	if toMS != 0 {
		query += " AND open_time <= ?"
		args = append(args, toMS)
	}
	query += " ORDER BY open_time ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query klines: %w", err)
	}
	defer rows.Close()

	var klines []model.Kline
	for rows.Next() {
		k, err := scanKline(rows)
		if err != nil {
			return nil, err
		}
		klines = append(klines, k)
	}
	return klines, rows.Err()
}

func scanKline(rows *sql.Rows) (model.Kline, error) {
	var k model.Kline
	var open, high, low, close, volume string
	if err := rows.Scan(&k.Symbol, &k.TF, &k.OpenTime, &open, &high, &low, &close, &volume); err != nil {
		return model.Kline{}, fmt.Errorf("sqlite scan klines: %w", err)
	}
	var err error
	if k.Open, err = decimal.NewFromString(open); err != nil {
		return model.Kline{}, fmt.Errorf("sqlite klines open %q: %w", open, err)
	}
	if k.High, err = decimal.NewFromString(high); err != nil {
		return model.Kline{}, fmt.Errorf("sqlite klines high %q: %w", high, err)
	}
	if k.Low, err = decimal.NewFromString(low); err != nil {
		return model.Kline{}, fmt.Errorf("sqlite klines low %q: %w", low, err)
	}
	if k.Close, err = decimal.NewFromString(close); err != nil {
		return model.Kline{}, fmt.Errorf("sqlite klines close %q: %w", close, err)
	}
	if k.Volume, err = decimal.NewFromString(volume); err != nil {
		return model.Kline{}, fmt.Errorf("sqlite klines volume %q: %w", volume, err)
	}
	return k, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
