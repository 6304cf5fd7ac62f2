// cmd/backtest replays historical klines for one symbol/timeframe through
// the stop-grid strategy against the mock exchange and reports the final
// portfolio value.
//
// Usage:
//
//	go run ./cmd/backtest --cash=10000 [--start=2024-01-01T00:00:00Z] [--end=...] ADAUSDC 1h
//
// Result tables are reset before the run; exit code is non-zero on any
// unhandled error.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"tradebotv1/config"
	"tradebotv1/internal/backtest"
	"tradebotv1/internal/ledger"
	"tradebotv1/internal/metrics"
	"tradebotv1/internal/mockex"
	"tradebotv1/internal/model"
	redisstore "tradebotv1/internal/store/redis"
	sqlitestore "tradebotv1/internal/store/sqlite"
	"tradebotv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	cash := flag.String("cash", "", "Starting quote cash (required unless the pair config sets it)")
	startStr := flag.String("start", "", "ISO start time (RFC3339), inclusive")
	endStr := flag.String("end", "", "ISO end time (RFC3339), inclusive")
	dbPath := flag.String("db", "", "Path to SQLite database (default from SQLITE_PATH)")
	commission := flag.String("commission", "", "Commission rate override, e.g. 0.001")
	qty := flag.String("qty", "1", "Order quantity per grid level")
	step := flag.String("step", "0.01", "Grid spacing as a fraction, e.g. 0.01 for 1%")
	levels := flag.Int("levels", 3, "Number of BUY stop levels")
	orderIDStart := flag.Int64("order-id-start", 1, "First order id of the session")
	flag.Parse()

	if flag.NArg() != 2 {
		log.Fatalf("[backtest] usage: backtest [flags] SYMBOL TIMEFRAME")
	}
	symbol, tf := flag.Arg(0), flag.Arg(1)

	base, quote, ok := model.SplitSymbol(symbol)
	if !ok {
		log.Fatalf("[backtest] cannot split symbol %q into base/quote", symbol)
	}

	cfg := config.Load()
	if *dbPath == "" {
		*dbPath = cfg.SQLitePath
	}

	fromMS, err := parseISO(*startStr)
	if err != nil {
		log.Fatalf("[backtest] invalid --start: %v", err)
	}
	toMS, err := parseISO(*endStr)
	if err != nil {
		log.Fatalf("[backtest] invalid --end: %v", err)
	}

	// Open SQLite
	store, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[backtest] sqlite init failed: %v", err)
	}
	defer store.Close()
	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	// Pair config supplies defaults the flags did not set
	if pc, err := store.GetPairConfig(symbol); err == nil {
		if *cash == "" {
			*cash = pc.Cash
		}
		if *commission == "" {
			*commission = pc.Commission
		}
	}
	if *cash == "" {
		log.Fatalf("[backtest] --cash required (no pair config for %s)", symbol)
	}
	if *commission == "" {
		*commission = cfg.Commission
	}

	startCash, err := decimal.NewFromString(*cash)
	if err != nil || !startCash.IsPositive() {
		log.Fatalf("[backtest] invalid --cash %q", *cash)
	}
	commRate, err := decimal.NewFromString(*commission)
	if err != nil || commRate.IsNegative() {
		log.Fatalf("[backtest] invalid --commission %q", *commission)
	}
	gridQty, err := decimal.NewFromString(*qty)
	if err != nil {
		log.Fatalf("[backtest] invalid --qty %q", *qty)
	}
	gridStep, err := decimal.NewFromString(*step)
	if err != nil {
		log.Fatalf("[backtest] invalid --step %q", *step)
	}

	// Optional metrics server
	var prom *metrics.Metrics
	if cfg.MetricsAddr != "" {
		prom = metrics.NewMetrics()
		health := metrics.NewHealthStatus()
		health.SetSQLiteOK(true)
		metrics.NewServer(cfg.MetricsAddr, health).Start()
	}

	// Load the bar series
	readStart := time.Now()
	klines, err := reader.ReadKlines(symbol, tf, fromMS, toMS)
	if err != nil {
		log.Fatalf("[backtest] read klines failed: %v", err)
	}
	if prom != nil {
		prom.KlineReadDur.Observe(time.Since(readStart).Seconds())
	}
	if len(klines) == 0 {
		log.Fatalf("[backtest] %v: %s %s [%d, %d]", mockex.ErrDataGap, symbol, tf, fromMS, toMS)
	}
	log.Printf("[backtest] loaded %d klines for %s %s", len(klines), symbol, tf)

	// Reset result tables so this run's rows stand alone
	if err := store.ResetResults(); err != nil {
		log.Fatalf("[backtest] reset results failed: %v", err)
	}

	// Optional dashboard event stream
	var pub *redisstore.Publisher
	if cfg.RedisAddr != "" {
		pub, err = redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[backtest] WARNING: redis init failed: %v (continuing without event stream)", err)
			pub = nil
		} else {
			defer pub.Close()
		}
	}

	// Assemble the session
	led := ledger.New(symbol, base, quote, startCash, commRate)
	ex := mockex.New(mockex.Config{
		Symbol:       symbol,
		BaseAsset:    base,
		QuoteAsset:   quote,
		TF:           tf,
		OrderIDStart: *orderIDStart,
	}, led, klines).WithMetrics(prom)

	strat, err := strategy.NewStopGrid(symbol, gridQty, gridStep, *levels)
	if err != nil {
		log.Fatalf("[backtest] strategy init failed: %v", err)
	}

	engine := backtest.New(ex, strat, klines).WithMetrics(prom)
	if pub != nil {
		engine = engine.WithRecorder(pub)
	}

	res, err := engine.Run()
	if err != nil {
		log.Fatalf("[backtest] run failed: %v", err)
	}

	// Persist results for the dashboard
	if err := store.InsertRun(sqlitestore.RunRecord{
		RunID:      res.RunID,
		Symbol:     res.Symbol,
		TF:         res.TF,
		Strategy:   strat.Name(),
		Bars:       res.Bars,
		StartCash:  startCash.String(),
		FinalValue: res.FinalValue.String(),
		CreatedAt:  res.FinishedAt.Unix(),
	}); err != nil {
		log.Fatalf("[backtest] store run failed: %v", err)
	}
	if err := store.InsertFills(res.RunID, res.Fills); err != nil {
		log.Fatalf("[backtest] store fills failed: %v", err)
	}

	// Print summary
	profit := res.FinalValue.Sub(startCash)
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Run:         %-22s ║\n", res.RunID)
	fmt.Printf("║  Bars:        %-22d ║\n", res.Bars)
	fmt.Printf("║  Fills:       %-22d ║\n", len(res.Fills))
	fmt.Printf("║  Start cash:  %-22s ║\n", startCash)
	fmt.Printf("║  Final value: %-22s ║\n", res.FinalValue)
	fmt.Printf("║  Profit:      %-22s ║\n", profit)
	fmt.Println("╚══════════════════════════════════════╝")
	fmt.Printf("final portfolio value: %s %s\n", res.FinalValue, quote)
}

func parseISO(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
