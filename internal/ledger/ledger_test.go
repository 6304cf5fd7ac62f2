package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger() *Ledger {
	return New("ADAUSDC", "ADA", "USDC", d("10000"), d("0.001"))
}

func TestBuySettlement(t *testing.T) {
	l := newTestLedger()

	if err := l.Buy(d("1000"), d("0.50")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if got := l.Total("ADA"); !got.Equal(d("1000")) {
		t.Errorf("ADA total = %s, want 1000", got)
	}
	// 10000 - 500 notional - 0.5 commission
	if got := l.Total("USDC"); !got.Equal(d("9499.5")) {
		t.Errorf("USDC total = %s, want 9499.5", got)
	}
}

func TestSellSettlement(t *testing.T) {
	l := newTestLedger()
	if err := l.Buy(d("1000"), d("0.50")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if err := l.Sell(d("1000"), d("0.60")); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if got := l.Total("ADA"); !got.IsZero() {
		t.Errorf("ADA total = %s, want 0", got)
	}
	// 9499.5 + 600 notional - 0.6 commission
	if got := l.Total("USDC"); !got.Equal(d("10098.9")) {
		t.Errorf("USDC total = %s, want 10098.9", got)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	l := newTestLedger()

	if err := l.Buy(d("100000"), d("0.50")); err == nil {
		t.Fatal("expected error for buy above cash balance")
	}
	if got := l.Total("USDC"); !got.Equal(d("10000")) {
		t.Errorf("USDC total mutated on failed buy: %s", got)
	}
	if got := l.Total("ADA"); !got.IsZero() {
		t.Errorf("ADA total mutated on failed buy: %s", got)
	}
}

func TestSellWithoutPosition(t *testing.T) {
	l := newTestLedger()

	if err := l.Sell(d("1"), d("0.50")); err == nil {
		t.Fatal("expected error for sell without position")
	}
}

func TestRejectsNonPositiveArgs(t *testing.T) {
	l := newTestLedger()

	if err := l.Buy(d("0"), d("0.50")); err == nil {
		t.Error("expected error for zero qty")
	}
	if err := l.Buy(d("1"), d("-0.50")); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestPortfolioValue(t *testing.T) {
	l := newTestLedger()

	// No position: value is quote cash, no mark needed.
	v, err := l.PortfolioValue(nil)
	if err != nil {
		t.Fatalf("portfolio value failed: %v", err)
	}
	if !v.Equal(d("10000")) {
		t.Errorf("value = %s, want 10000", v)
	}

	if err := l.Buy(d("1000"), d("0.50")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	// Open position: marked at the given price.
	v, err = l.PortfolioValue(map[string]decimal.Decimal{"ADAUSDC": d("0.60")})
	if err != nil {
		t.Fatalf("portfolio value failed: %v", err)
	}
	if !v.Equal(d("10099.5")) {
		t.Errorf("value = %s, want 10099.5", v)
	}

	// Open position without a mark price is an error, not a silent zero.
	if _, err := l.PortfolioValue(nil); err == nil {
		t.Error("expected error for unmarked position")
	}
}

func TestReset(t *testing.T) {
	l := newTestLedger()
	if err := l.Buy(d("1000"), d("0.50")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	l.Reset()

	if got := l.Total("USDC"); !got.Equal(d("10000")) {
		t.Errorf("USDC after reset = %s, want 10000", got)
	}
	if got := l.Total("ADA"); !got.IsZero() {
		t.Errorf("ADA after reset = %s, want 0", got)
	}
}
