package strategy_test

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

func newSession(bars []model.Kline) *mockex.Exchange {
	led := ledger.New("ADAUSDC", "ADA", "USDC", d("10000"), d("0.001"))
	return mockex.New(mockex.Config{
		Symbol:     "ADAUSDC",
		BaseAsset:  "ADA",
		QuoteAsset: "USDC",
		TF:         "1h",
	}, led, bars)
}

func TestNewStopGridValidation(t *testing.T) {
	if _, err := strategy.NewStopGrid("ADAUSDC", d("0"), d("0.01"), 3); err == nil {
		t.Error("expected error for zero qty")
	}
	if _, err := strategy.NewStopGrid("ADAUSDC", d("1"), d("1"), 3); err == nil {
		t.Error("expected error for step >= 1")
	}
	if _, err := strategy.NewStopGrid("ADAUSDC", d("1"), d("0.01"), 0); err == nil {
		t.Error("expected error for zero levels")
	}
}

func TestArmLadderOnFirstBar(t *testing.T) {
	bars := []model.Kline{bar(1000, "0.50", "0.50", "0.49", "0.50")}
	ex := newSession(bars)
	grid, err := strategy.NewStopGrid("ADAUSDC", d("100"), d("0.01"), 3)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	ex.UpdateTick(0)
	if err := grid.OnBar(ex, 0, bars[0]); err != nil {
		t.Fatalf("on bar failed: %v", err)
	}

	open := ex.GetOpenOrders("ADAUSDC")
	if len(open) != 3 {
		t.Fatalf("open orders = %d, want 3", len(open))
	}
	// BUY stops at close*(1+step*k), one per level.
	for i, want := range []string{"0.505", "0.51", "0.515"} {
		if open[i].Side != model.SideBuy {
			t.Errorf("order %d side = %s, want BUY", i, open[i].Side)
		}
		if !open[i].StopPrice.Equal(d(want)) {
			t.Errorf("order %d stop = %s, want %s", i, open[i].StopPrice, want)
		}
	}
}

func TestProtectiveSellAfterFill(t *testing.T) {
	bars := []model.Kline{
		bar(1000, "0.50", "0.50", "0.49", "0.50"),
		bar(2000, "0.50", "0.506", "0.499", "0.505"),
		bar(3000, "0.505", "0.507", "0.502", "0.506"),
	}
	ex := newSession(bars)
	grid, err := strategy.NewStopGrid("ADAUSDC", d("100"), d("0.01"), 2)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	// Bar 0: arm. Bar 1: level 1 (0.505) fills. Bar 2: protective sell shows up.
	for i, b := range bars {
		ex.UpdateTick(i)
		if err := grid.OnBar(ex, i, b); err != nil {
			t.Fatalf("on bar %d failed: %v", i, err)
		}
		if _, err := ex.EvaluateTriggers(b); err != nil {
			t.Fatalf("triggers on bar %d failed: %v", i, err)
		}
	}

	var sell *model.Order
	for _, o := range ex.GetOpenOrders("ADAUSDC") {
		if o.Side == model.SideSell {
			o := o
			sell = &o
		}
	}
	if sell == nil {
		t.Fatal("no protective SELL after a BUY fill")
	}
	// One step below the 0.505 entry.
	if !sell.StopPrice.Equal(d("0.49995")) {
		t.Errorf("protective stop = %s, want 0.49995", sell.StopPrice)
	}
	if !sell.OrigQty.Equal(d("100")) {
		t.Errorf("protective qty = %s, want 100", sell.OrigQty)
	}
}

func TestSkipsLevelsBeyondFreeCash(t *testing.T) {
	bars := []model.Kline{bar(1000, "0.50", "0.50", "0.49", "0.50")}
	led := ledger.New("ADAUSDC", "ADA", "USDC", d("60"), d("0.001"))
	ex := mockex.New(mockex.Config{
		Symbol:     "ADAUSDC",
		BaseAsset:  "ADA",
		QuoteAsset: "USDC",
		TF:         "1h",
	}, led, bars)

	grid, err := strategy.NewStopGrid("ADAUSDC", d("100"), d("0.01"), 3)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := grid.OnBar(ex, 0, bars[0]); err != nil {
		t.Fatalf("on bar failed: %v", err)
	}

	// 60 USDC covers only the first level (50.5); the rest are skipped, not
	// rejected.
	open := ex.GetOpenOrders("ADAUSDC")
	if len(open) != 1 {
		t.Fatalf("open orders = %d, want 1", len(open))
	}
	if !open[0].StopPrice.Equal(d("0.505")) {
		t.Errorf("stop = %s, want 0.505", open[0].StopPrice)
	}
}
