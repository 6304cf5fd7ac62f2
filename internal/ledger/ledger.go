// Package ledger tracks the cash and position totals behind one simulated
// trading session. It is the single source of truth for asset totals:
// nothing mutates them except buy/sell settlement, and settlement is only
// ever invoked by the mock exchange after its locked-balance accounting has
// verified the funds exist.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger holds per-asset totals for the base and quote assets of a single
// symbol. Commission is a fixed rate charged in the quote asset on every
// settlement.
type Ledger struct {
	symbol     string
	base       string
	quote      string
	commission decimal.Decimal
	cash       decimal.Decimal // starting quote cash, kept for Reset

	totals map[string]decimal.Decimal
}

// New creates a ledger for symbol with the given base/quote assets, seeded
// with cash in the quote asset. commission is a rate such as 0.001 for 0.1%.
func New(symbol, base, quote string, cash, commission decimal.Decimal) *Ledger {
	l := &Ledger{
		symbol:     symbol,
		base:       base,
		quote:      quote,
		commission: commission,
		cash:       cash,
	}
	l.Reset()
	return l
}

// Reset restores the ledger to its session-start state: quote = starting
// cash, base = 0.
func (l *Ledger) Reset() {
	l.totals = map[string]decimal.Decimal{
		l.base:  decimal.Zero,
		l.quote: l.cash,
	}
}

// Symbol returns the configured symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// BaseAsset returns the base asset of the configured symbol.
func (l *Ledger) BaseAsset() string { return l.base }

// QuoteAsset returns the quote asset of the configured symbol.
func (l *Ledger) QuoteAsset() string { return l.quote }

// Total returns the total quantity held of asset. Unconfigured assets
// report zero.
func (l *Ledger) Total(asset string) decimal.Decimal {
	return l.totals[asset]
}

// Buy settles a purchase of qty base at price: base += qty, quote -=
// qty*price plus commission. The caller must have verified funds via its
// locked accounting; an impossible settlement here is a contract violation
// and fails rather than clamping.
func (l *Ledger) Buy(qty, price decimal.Decimal) error {
	if err := checkArgs(qty, price); err != nil {
		return err
	}
	notional := qty.Mul(price)
	cost := notional.Add(notional.Mul(l.commission))
	if l.totals[l.quote].LessThan(cost) {
		return fmt.Errorf("ledger buy: %s balance %s cannot settle %s", l.quote, l.totals[l.quote], cost)
	}
	l.totals[l.base] = l.totals[l.base].Add(qty)
	l.totals[l.quote] = l.totals[l.quote].Sub(cost)
	return nil
}

// Sell settles a sale of qty base at price: base -= qty, quote += qty*price
// minus commission.
func (l *Ledger) Sell(qty, price decimal.Decimal) error {
	if err := checkArgs(qty, price); err != nil {
		return err
	}
	if l.totals[l.base].LessThan(qty) {
		return fmt.Errorf("ledger sell: %s balance %s cannot settle %s", l.base, l.totals[l.base], qty)
	}
	notional := qty.Mul(price)
	proceeds := notional.Sub(notional.Mul(l.commission))
	l.totals[l.base] = l.totals[l.base].Sub(qty)
	l.totals[l.quote] = l.totals[l.quote].Add(proceeds)
	return nil
}

// PortfolioValue returns quote cash plus every position marked at the given
// prices. A nonzero position without a mark price is an error, not a silent
// zero.
func (l *Ledger) PortfolioValue(marks map[string]decimal.Decimal) (decimal.Decimal, error) {
	value := l.totals[l.quote]
	pos := l.totals[l.base]
	if pos.IsZero() {
		return value, nil
	}
	mark, ok := marks[l.symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("ledger: no mark price for %s", l.symbol)
	}
	return value.Add(pos.Mul(mark)), nil
}

func checkArgs(qty, price decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("ledger: qty must be positive, got %s", qty)
	}
	if !price.IsPositive() {
		return fmt.Errorf("ledger: price must be positive, got %s", price)
	}
	return nil
}
