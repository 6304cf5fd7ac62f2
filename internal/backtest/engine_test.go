package backtest

import (
	"testing"

	"github.com/shopspring/decimal"

	"tradebotv1/internal/ledger"
	"tradebotv1/internal/mockex"
	"tradebotv1/internal/model"
	"tradebotv1/internal/strategy"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bar(openTime int64, open, high, low, close string) model.Kline {
	return model.Kline{
		Symbol:   "ADAUSDC",
		TF:       "1h",
		OpenTime: openTime,
		Open:     d(open),
		High:     d(high),
		Low:      d(low),
		Close:    d(close),
		Volume:   d("1000"),
	}
}

// buyOnce places a single BUY stop on the first bar and then stays idle.
type buyOnce struct {
	qty, stop decimal.Decimal
	placed    bool
}

func (s *buyOnce) Name() string { return "buyOnce" }

func (s *buyOnce) OnBar(ex strategy.Exchange, index int, k model.Kline) error {
	if s.placed {
		return nil
	}
	s.placed = true
	_, err := ex.CreateOrder(model.CreateOrderRequest{
		Symbol:    "ADAUSDC",
		Side:      model.SideBuy,
		Type:      model.OrderTypeStopLoss,
		Quantity:  s.qty,
		StopPrice: s.stop,
	})
	return err
}

func newSession(bars []model.Kline) *mockex.Exchange {
	led := ledger.New("ADAUSDC", "ADA", "USDC", d("10000"), d("0.001"))
	return mockex.New(mockex.Config{
		Symbol:     "ADAUSDC",
		BaseAsset:  "ADA",
		QuoteAsset: "USDC",
		TF:         "1h",
	}, led, bars)
}

func TestRunSameBarFill(t *testing.T) {
	bars := []model.Kline{
		bar(1000, "0.48", "0.52", "0.47", "0.50"),
		bar(2000, "0.50", "0.62", "0.49", "0.60"),
	}
	ex := newSession(bars)
	strat := &buyOnce{qty: d("1000"), stop: d("0.50")}

	res, err := New(ex, strat, bars).Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Triggers run after the strategy callback, so the order placed on bar 0
	// fills against bar 0's own high.
	if len(res.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(res.Fills))
	}
	if res.Fills[0].UpdateTime != 1000 {
		t.Errorf("fill updateTime = %d, want 1000", res.Fills[0].UpdateTime)
	}
	if len(res.Trace) != 2 {
		t.Fatalf("trace = %d entries, want 2", len(res.Trace))
	}
	if len(res.Trace[0].Fills) != 1 {
		t.Errorf("bar 0 trace fills = %d, want 1", len(res.Trace[0].Fills))
	}

	// 10000 - 500 - 0.5 commission, position marked at the last close.
	if !res.FinalValue.Equal(d("10099.5")) {
		t.Errorf("final value = %s, want 10099.5", res.FinalValue)
	}
}

func TestRunDeterministic(t *testing.T) {
	bars := []model.Kline{
		bar(1000, "0.48", "0.49", "0.47", "0.48"),
		bar(2000, "0.48", "0.52", "0.47", "0.50"),
		bar(3000, "0.50", "0.55", "0.49", "0.54"),
	}
	ex := newSession(bars)

	run := func() *Result {
		strat := &buyOnce{qty: d("1000"), stop: d("0.50")}
		res, err := New(ex, strat, bars).Run()
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		return res
	}

	a := run()
	b := run()

	if len(a.Fills) != len(b.Fills) {
		t.Fatalf("fill counts differ: %d vs %d", len(a.Fills), len(b.Fills))
	}
	for i := range a.Fills {
		if a.Fills[i].OrderID != b.Fills[i].OrderID {
			t.Errorf("fill %d order ids differ: %d vs %d", i, a.Fills[i].OrderID, b.Fills[i].OrderID)
		}
		if !a.Fills[i].CummulativeQuoteQty.Equal(b.Fills[i].CummulativeQuoteQty) {
			t.Errorf("fill %d quote qty differs: %s vs %s", i, a.Fills[i].CummulativeQuoteQty, b.Fills[i].CummulativeQuoteQty)
		}
		if a.Fills[i].UpdateTime != b.Fills[i].UpdateTime {
			t.Errorf("fill %d updateTime differs: %d vs %d", i, a.Fills[i].UpdateTime, b.Fills[i].UpdateTime)
		}
	}
	if !a.FinalValue.Equal(b.FinalValue) {
		t.Errorf("final values differ: %s vs %s", a.FinalValue, b.FinalValue)
	}
}

func TestRunEmptySeries(t *testing.T) {
	ex := newSession(nil)
	strat := &buyOnce{qty: d("1"), stop: d("0.5")}

	if _, err := New(ex, strat, nil).Run(); err == nil {
		t.Fatal("expected error for empty bar series")
	}
}

func TestRunWithStopGrid(t *testing.T) {
	// Breakout, stop-out, and a flat tail.
	bars := []model.Kline{
		bar(1000, "0.500", "0.505", "0.495", "0.500"),
		bar(2000, "0.500", "0.510", "0.498", "0.508"),
		bar(3000, "0.508", "0.509", "0.499", "0.501"),
		bar(4000, "0.501", "0.503", "0.490", "0.492"),
		bar(5000, "0.492", "0.495", "0.490", "0.493"),
	}
	ex := newSession(bars)
	strat, err := strategy.NewStopGrid("ADAUSDC", d("1000"), d("0.01"), 2)
	if err != nil {
		t.Fatalf("stopgrid init failed: %v", err)
	}

	res, err := New(ex, strat, bars).Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(res.Fills) < 2 {
		t.Fatalf("fills = %d, want at least a buy and its stop-out", len(res.Fills))
	}
	if res.Fills[0].Side != model.SideBuy {
		t.Errorf("first fill side = %s, want BUY", res.Fills[0].Side)
	}
	var sawSell bool
	for _, f := range res.Fills {
		if f.Side == model.SideSell {
			sawSell = true
		}
	}
	if !sawSell {
		t.Error("no protective SELL fill in run")
	}
	if res.FinalValue.IsZero() {
		t.Error("final value is zero")
	}
}
