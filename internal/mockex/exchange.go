// Package mockex is a mock spot exchange for backtesting. It replays an
// exchange-shaped API surface (create/cancel/list orders, account, klines)
// against historical bars, with locked/free balance accounting on top of the
// session ledger and a per-bar trigger pass that fills pending STOP_LOSS
// orders.
//
// Everything is single-threaded by construction: one strategy callback per
// bar, one trigger pass per bar, nothing else touches the session in
// between.
package mockex

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"tradebotv1/internal/ledger"
	"tradebotv1/internal/metrics"
	"tradebotv1/internal/model"
)

// Config describes the single symbol a session simulates.
type Config struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	TF         string

	// OrderIDStart is the first order id of a session (default 1). IDs are
	// strictly increasing and never reused after a cancel or fill.
	OrderIDStart int64
}

// Exchange is one mock exchange session: order-id counter, pending and
// executed order sets, and locked balances, all reset together at run start
// so repeated runs over identical inputs are bit-reproducible.
type Exchange struct {
	cfg    Config
	ledger *ledger.Ledger
	klines []model.Kline

	cur      int // current bar index, set by UpdateTick
	nextID   int64
	pending  []*model.Order // ascending order id
	executed []*model.Order // FILLED, ascending order id
	locked   map[string]decimal.Decimal

	prom *metrics.Metrics // optional
}

// New creates a session over the given bar series. The series must be
// ascending by open time, exactly as the data loader persists it.
func New(cfg Config, led *ledger.Ledger, klines []model.Kline) *Exchange {
	if cfg.OrderIDStart <= 0 {
		cfg.OrderIDStart = 1
	}
	e := &Exchange{cfg: cfg, ledger: led, klines: klines}
	e.Reset()
	return e
}

// Reset restores the session-start state: order counter back to its start
// value, order sets cleared, locks released, ledger reseeded.
func (e *Exchange) Reset() {
	e.cur = 0
	e.nextID = e.cfg.OrderIDStart
	e.pending = nil
	e.executed = nil
	e.locked = map[string]decimal.Decimal{
		e.cfg.BaseAsset:  decimal.Zero,
		e.cfg.QuoteAsset: decimal.Zero,
	}
	e.ledger.Reset()
}

// Ledger returns the session ledger.
func (e *Exchange) Ledger() *ledger.Ledger { return e.ledger }

// WithMetrics attaches prometheus counters for order lifecycle events.
func (e *Exchange) WithMetrics(m *metrics.Metrics) *Exchange {
	e.prom = m
	return e
}

// UpdateTick advances the exchange's view of the current bar. It is purely a
// pointer update with no side effects on orders.
func (e *Exchange) UpdateTick(barIndex int) {
	e.cur = barIndex
}

func (e *Exchange) now() int64 {
	if e.cur >= 0 && e.cur < len(e.klines) {
		return e.klines[e.cur].OpenTime
	}
	return 0
}

func (e *Exchange) free(asset string) decimal.Decimal {
	return e.ledger.Total(asset).Sub(e.locked[asset])
}

// GetKlines returns bars of the configured series filtered by open-time
// range and truncated to the first limit rows. It is a pure pass-through
// over the loaded series: no resampling, rounding, or boundary correction.
// startTime/endTime of 0 mean unset; both bounds are inclusive.
func (e *Exchange) GetKlines(symbol, interval string, limit int, startTime, endTime int64) ([]model.Kline, error) {
	if symbol == "" || symbol != e.cfg.Symbol {
		return nil, fmt.Errorf("%w: symbol %q", ErrInvalidParameter, symbol)
	}
	if interval == "" || interval != e.cfg.TF {
		return nil, fmt.Errorf("%w: interval %q", ErrInvalidParameter, interval)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidParameter, limit)
	}
	if startTime != 0 && endTime != 0 && endTime < startTime {
		return nil, fmt.Errorf("%w: endTime %d before startTime %d", ErrInvalidParameter, endTime, startTime)
	}

	out := make([]model.Kline, 0, limit)
	for _, k := range e.klines {
		if startTime != 0 && k.OpenTime < startTime {
			continue
		}
		if endTime != 0 && k.OpenTime > endTime {
			break
		}
		out = append(out, k)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetAllOrders returns FILLED orders in ascending order id. orderID filters
// inclusively (>= orderID, 0 = all), for incremental sync by callers that
// remember the last id they saw. limit truncates when positive, 0 returns
// everything; there is no artificial row cap. CANCELED orders never appear.
func (e *Exchange) GetAllOrders(symbol string, limit int, orderID int64) ([]model.Order, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidParameter)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidParameter, limit)
	}
	out := []model.Order{}
	for _, o := range e.executed {
		if o.Symbol != symbol || o.OrderID < orderID {
			continue
		}
		out = append(out, *o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetOpenOrders returns pending (NEW) orders in ascending order id,
// optionally filtered by symbol ("" = all).
func (e *Exchange) GetOpenOrders(symbol string) []model.Order {
	out := []model.Order{}
	for _, o := range e.pending {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, *o)
	}
	return out
}

// GetAccount returns the base and quote balances of the configured symbol.
// free is computed as total - locked at call time.
func (e *Exchange) GetAccount() model.Account {
	return model.Account{Balances: []model.Balance{
		{
			Asset:  e.cfg.BaseAsset,
			Free:   e.free(e.cfg.BaseAsset),
			Locked: e.locked[e.cfg.BaseAsset],
		},
		{
			Asset:  e.cfg.QuoteAsset,
			Free:   e.free(e.cfg.QuoteAsset),
			Locked: e.locked[e.cfg.QuoteAsset],
		},
	}}
}

// CreateOrder accepts a STOP_LOSS order, locks the funds it needs, and
// parks it in the pending set with the next order id. A BUY locks
// qty*stopPrice of quote; a SELL locks qty of base. Rejections happen
// before any state mutation.
func (e *Exchange) CreateOrder(req model.CreateOrderRequest) (model.Order, error) {
	if req.Type != model.OrderTypeStopLoss {
		return model.Order{}, fmt.Errorf("%w: %q", ErrUnsupportedOrderType, req.Type)
	}
	if req.Symbol == "" || req.Symbol != e.cfg.Symbol {
		return model.Order{}, fmt.Errorf("%w: symbol %q", ErrInvalidParameter, req.Symbol)
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return model.Order{}, fmt.Errorf("%w: side %q", ErrInvalidParameter, req.Side)
	}
	if !req.Quantity.IsPositive() {
		return model.Order{}, fmt.Errorf("%w: quantity %s", ErrInvalidParameter, req.Quantity)
	}
	if !req.StopPrice.IsPositive() {
		return model.Order{}, fmt.Errorf("%w: stopPrice %s", ErrInvalidParameter, req.StopPrice)
	}

	lockAsset := e.cfg.QuoteAsset
	lockAmount := req.Quantity.Mul(req.StopPrice)
	if req.Side == model.SideSell {
		lockAsset = e.cfg.BaseAsset
		lockAmount = req.Quantity
	}
	if free := e.free(lockAsset); free.LessThan(lockAmount) {
		return model.Order{}, &InsufficientBalanceError{Asset: lockAsset, Need: lockAmount, Free: free}
	}

	e.locked[lockAsset] = e.locked[lockAsset].Add(lockAmount)
	now := e.now()
	o := &model.Order{
		OrderID:             e.nextID,
		ClientOrderID:       req.ClientOrderID,
		Symbol:              req.Symbol,
		Side:                req.Side,
		Type:                model.OrderTypeStopLoss,
		Price:               decimal.Zero, // trigger price lives in StopPrice
		StopPrice:           req.StopPrice,
		OrigQty:             req.Quantity,
		ExecutedQty:         decimal.Zero,
		CummulativeQuoteQty: decimal.Zero,
		Status:              model.StatusNew,
		Time:                now,
		UpdateTime:          now,
	}
	e.nextID++
	e.pending = append(e.pending, o)

	if e.prom != nil {
		e.prom.OrdersPlaced.Inc()
	}
	log.Printf("[mockex] order placed id=%d %s %s qty=%s stop=%s", o.OrderID, o.Side, o.Symbol, o.OrigQty, o.StopPrice)
	return *o, nil
}

// CancelOrder cancels a pending order, releasing its locked funds. Exactly
// one of orderID (0 = unset) and clientOrderID ("" = unset) must resolve to
// a pending order; orderID takes precedence when both are given. Canceling
// an unknown or already-terminal order is an error, not a no-op.
func (e *Exchange) CancelOrder(symbol string, orderID int64, clientOrderID string) (model.Order, error) {
	if symbol == "" || symbol != e.cfg.Symbol {
		return model.Order{}, fmt.Errorf("%w: symbol %q", ErrInvalidParameter, symbol)
	}
	if orderID == 0 && clientOrderID == "" {
		return model.Order{}, fmt.Errorf("%w: orderId or clientOrderId required", ErrInvalidParameter)
	}

	idx := -1
	for i, o := range e.pending {
		if orderID != 0 {
			if o.OrderID == orderID {
				idx = i
				break
			}
			continue
		}
		if o.ClientOrderID != "" && o.ClientOrderID == clientOrderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		if orderID != 0 {
			return model.Order{}, fmt.Errorf("%w: orderId %d", ErrOrderNotFound, orderID)
		}
		return model.Order{}, fmt.Errorf("%w: clientOrderId %q", ErrOrderNotFound, clientOrderID)
	}

	o := e.pending[idx]
	e.release(o)
	o.Status = model.StatusCanceled
	o.UpdateTime = e.now()
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)

	if e.prom != nil {
		e.prom.OrdersCanceled.Inc()
	}
	log.Printf("[mockex] order canceled id=%d %s %s", o.OrderID, o.Side, o.Symbol)
	return *o, nil
}

// EvaluateTriggers fills every pending order whose stop condition the bar
// crosses: BUY when bar.High >= stopPrice, SELL when bar.Low <= stopPrice,
// both inclusive. Fills happen at stopPrice for the full quantity, in
// ascending order id, settling through the ledger and releasing the lock.
// The engine runs this once per bar, strictly after the strategy callback,
// so an order created on bar N can trigger on bar N's own high/low.
func (e *Exchange) EvaluateTriggers(bar model.Kline) ([]model.Order, error) {
	var filled []model.Order
	snapshot := e.pending
	remaining := snapshot[:0]
	for i, o := range snapshot {
		if !triggered(o, bar) {
			remaining = append(remaining, o)
			continue
		}

		var err error
		if o.Side == model.SideBuy {
			err = e.ledger.Buy(o.OrigQty, o.StopPrice)
		} else {
			err = e.ledger.Sell(o.OrigQty, o.StopPrice)
		}
		if err != nil {
			// Locked accounting should make this impossible; surface the
			// contract violation instead of skipping the order.
			e.pending = append(remaining, snapshot[i:]...)
			return filled, fmt.Errorf("fill order %d: %w", o.OrderID, err)
		}

		e.release(o)
		o.ExecutedQty = o.OrigQty
		o.CummulativeQuoteQty = o.OrigQty.Mul(o.StopPrice)
		o.Status = model.StatusFilled
		o.UpdateTime = bar.OpenTime
		e.executed = append(e.executed, o)
		filled = append(filled, *o)

		if e.prom != nil {
			e.prom.OrdersFilled.Inc()
		}
		log.Printf("[mockex] order filled id=%d %s %s qty=%s stop=%s t=%d", o.OrderID, o.Side, o.Symbol, o.ExecutedQty, o.StopPrice, bar.OpenTime)
	}
	e.pending = remaining
	return filled, nil
}

func triggered(o *model.Order, bar model.Kline) bool {
	if o.Side == model.SideBuy {
		return bar.High.GreaterThanOrEqual(o.StopPrice)
	}
	return bar.Low.LessThanOrEqual(o.StopPrice)
}

// release returns the funds an order had locked at creation.
func (e *Exchange) release(o *model.Order) {
	if o.Side == model.SideBuy {
		e.locked[e.cfg.QuoteAsset] = e.locked[e.cfg.QuoteAsset].Sub(o.OrigQty.Mul(o.StopPrice))
		return
	}
	e.locked[e.cfg.BaseAsset] = e.locked[e.cfg.BaseAsset].Sub(o.OrigQty)
}
