// cmd/klinesync imports kline history from a CSV export into the SQLite
// store so backtests have data to replay.
//
// CSV columns: open_time_ms,open,high,low,close,volume (header optional).
//
// Usage:
//
//	go run ./cmd/klinesync --file=ada_1h.csv ADAUSDC 1h
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"tradebotv1/config"
	"tradebotv1/internal/model"
	sqlitestore "tradebotv1/internal/store/sqlite"
)

const importBatch = 1000

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	file := flag.String("file", "", "CSV file to import (default stdin)")
	dbPath := flag.String("db", "", "Path to SQLite database (default from SQLITE_PATH)")
	flag.Parse()

	if flag.NArg() != 2 {
		log.Fatalf("[klinesync] usage: klinesync [flags] SYMBOL TIMEFRAME")
	}
	symbol, tf := flag.Arg(0), flag.Arg(1)
	if _, _, ok := model.SplitSymbol(symbol); !ok {
		log.Fatalf("[klinesync] cannot split symbol %q into base/quote", symbol)
	}

	cfg := config.Load()
	if *dbPath == "" {
		*dbPath = cfg.SQLitePath
	}

	var in io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("[klinesync] open %s failed: %v", *file, err)
		}
		defer f.Close()
		in = f
	}

	store, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[klinesync] sqlite init failed: %v", err)
	}
	defer store.Close()

	r := csv.NewReader(in)
	r.FieldsPerRecord = 6

	var (
		batch    []model.Kline
		imported int
		line     int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("[klinesync] csv read failed at line %d: %v", line+1, err)
		}
		line++

		k, err := parseRow(symbol, tf, rec)
		if err != nil {
			// Tolerate a header row, nothing else.
			if line == 1 {
				continue
			}
			log.Fatalf("[klinesync] line %d: %v", line, err)
		}
		batch = append(batch, k)

		if len(batch) >= importBatch {
			n, err := store.InsertKlines(batch)
			if err != nil {
				log.Fatalf("[klinesync] insert failed: %v", err)
			}
			imported += n
			batch = batch[:0]
			log.Printf("[klinesync] imported %d klines for %s %s", imported, symbol, tf)
		}
	}
	if len(batch) > 0 {
		n, err := store.InsertKlines(batch)
		if err != nil {
			log.Fatalf("[klinesync] insert failed: %v", err)
		}
		imported += n
	}

	log.Printf("[klinesync] done: %d klines imported for %s %s", imported, symbol, tf)
}

func parseRow(symbol, tf string, rec []string) (model.Kline, error) {
	openTime, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return model.Kline{}, fmt.Errorf("bad open_time %q: %w", rec[0], err)
	}
	fields := make([]decimal.Decimal, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i, name := range names {
		d, err := decimal.NewFromString(rec[i+1])
		if err != nil {
			return model.Kline{}, fmt.Errorf("bad %s %q: %w", name, rec[i+1], err)
		}
		fields[i] = d
	}
	return model.Kline{
		Symbol:   symbol,
		TF:       tf,
		OpenTime: openTime,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
