// Package backtest drives one deterministic replay of a kline series
// through a strategy and the mock exchange.
//
// The loop per bar: advance the exchange's bar pointer, run the strategy
// callback, evaluate stop triggers (so same-bar fills are possible), record
// a trace entry. Nothing is concurrent and nothing is retried: the first
// error from the strategy or the exchange aborts the run, and a partial
// trace is not a valid backtest result.
package backtest

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"tradebotv1/internal/ledger"
	"tradebotv1/internal/metrics"
	"tradebotv1/internal/mockex"
	"tradebotv1/internal/model"
	"tradebotv1/internal/strategy"
)

// Recorder receives run lifecycle events for dashboards. Implementations
// must be best-effort: the run never blocks or fails on a recorder.
type Recorder interface {
	RunStarted(runID, symbol, tf string, bars int)
	Fill(runID string, o model.Order)
	Equity(runID string, index int, openTime int64, value decimal.Decimal)
	RunFinished(runID string, finalValue decimal.Decimal)
}

// TraceEntry is one bar's worth of run history: the bar, the fills it
// triggered, and the account after the trigger pass.
type TraceEntry struct {
	Index   int
	Bar     model.Kline
	Fills   []model.Order
	Account model.Account
}

// Result is the outcome of a completed run.
type Result struct {
	RunID      string
	Symbol     string
	TF         string
	Bars       int
	Fills      []model.Order
	FinalValue decimal.Decimal
	Trace      []TraceEntry
	StartedAt  time.Time
	FinishedAt time.Time
}

// Engine replays a bar series through a strategy against one mock exchange
// session. Metrics and recorder are optional (nil-safe).
type Engine struct {
	ex    *mockex.Exchange
	led   *ledger.Ledger
	strat strategy.Strategy
	bars  []model.Kline

	prom *metrics.Metrics
	rec  Recorder
}

// New creates an engine over the given session and bars.
func New(ex *mockex.Exchange, strat strategy.Strategy, bars []model.Kline) *Engine {
	return &Engine{ex: ex, led: ex.Ledger(), strat: strat, bars: bars}
}

// WithMetrics attaches prometheus metrics to the run.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.prom = m
	return e
}

// WithRecorder attaches a run event recorder.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.rec = r
	return e
}

// Run resets the session and walks the full bar series. Repeated runs over
// identical inputs produce identical order ids, fills, and final value.
func (e *Engine) Run() (*Result, error) {
	if len(e.bars) == 0 {
		return nil, fmt.Errorf("run: %w", mockex.ErrDataGap)
	}

	start := time.Now()
	res := &Result{
		RunID:     fmt.Sprintf("bt-%s-%s", e.bars[0].Symbol, start.UTC().Format("20060102T150405")),
		Symbol:    e.bars[0].Symbol,
		TF:        e.bars[0].TF,
		Bars:      len(e.bars),
		StartedAt: start,
	}

	// Clean session per run: counter back to start, orders cleared, ledger
	// reseeded. This is what makes reruns bit-reproducible.
	e.ex.Reset()

	if e.prom != nil {
		e.prom.RunsTotal.Inc()
	}
	if e.rec != nil {
		e.rec.RunStarted(res.RunID, res.Symbol, res.TF, res.Bars)
	}
	log.Printf("[backtest] run %s: %d bars of %s %s, strategy=%s", res.RunID, res.Bars, res.Symbol, res.TF, e.strat.Name())

	for i, bar := range e.bars {
		e.ex.UpdateTick(i)

		if err := e.strat.OnBar(e.ex, i, bar); err != nil {
			return nil, fmt.Errorf("strategy %s on bar %d: %w", e.strat.Name(), i, err)
		}

		fills, err := e.ex.EvaluateTriggers(bar)
		if err != nil {
			return nil, fmt.Errorf("triggers on bar %d: %w", i, err)
		}

		account := e.ex.GetAccount()
		res.Fills = append(res.Fills, fills...)
		res.Trace = append(res.Trace, TraceEntry{Index: i, Bar: bar, Fills: fills, Account: account})

		if e.prom != nil {
			e.prom.BarsTotal.Inc()
		}
		if e.rec != nil {
			for _, f := range fills {
				e.rec.Fill(res.RunID, f)
			}
			if value, err := e.led.PortfolioValue(map[string]decimal.Decimal{res.Symbol: bar.Close}); err == nil {
				e.rec.Equity(res.RunID, i, bar.OpenTime, value)
			}
		}
	}

	lastClose := e.bars[len(e.bars)-1].Close
	final, err := e.led.PortfolioValue(map[string]decimal.Decimal{res.Symbol: lastClose})
	if err != nil {
		return nil, fmt.Errorf("final portfolio value: %w", err)
	}
	res.FinalValue = final
	res.FinishedAt = time.Now()

	if e.prom != nil {
		e.prom.RunDuration.Observe(res.FinishedAt.Sub(start).Seconds())
		fv, _ := final.Float64()
		e.prom.FinalValue.Set(fv)
	}
	if e.rec != nil {
		e.rec.RunFinished(res.RunID, final)
	}
	log.Printf("[backtest] run %s finished: %d fills, final value %s", res.RunID, len(res.Fills), final)

	return res, nil
}
