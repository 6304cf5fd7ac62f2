package strategy

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"tradebotv1/internal/model"
)

// StopGrid is a breakout ladder strategy built entirely from STOP_LOSS
// orders, the one order type the mock exchange supports.
//
// On the first bar it arms a ladder of BUY stops above the close, one per
// level, spaced step apart. When a BUY fills it places a protective SELL
// stop one step below the entry. When a protective SELL fills, the level
// re-arms at its entry price — unless an earlier unmatched BUY still sits
// above it, in which case the level stays disarmed rather than averaging
// down under an open loss.
type StopGrid struct {
	symbol string
	qty    decimal.Decimal
	step   decimal.Decimal // fractional spacing, e.g. 0.01 for 1%
	levels int

	armed      bool
	lastSeenID int64
	buys       map[int64]decimal.Decimal // open BUY stops: order id -> stop price
	sells      map[int64]decimal.Decimal // protective SELL stops: order id -> entry they protect
}

// NewStopGrid creates a stop ladder over symbol with levels BUY stops
// spaced step apart.
func NewStopGrid(symbol string, qty, step decimal.Decimal, levels int) (*StopGrid, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("stopgrid: qty must be positive, got %s", qty)
	}
	if !step.IsPositive() || step.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("stopgrid: step must be in (0,1), got %s", step)
	}
	if levels <= 0 {
		return nil, fmt.Errorf("stopgrid: levels must be positive, got %d", levels)
	}
	return &StopGrid{
		symbol: symbol,
		qty:    qty,
		step:   step,
		levels: levels,
		buys:   make(map[int64]decimal.Decimal),
		sells:  make(map[int64]decimal.Decimal),
	}, nil
}

func (s *StopGrid) Name() string { return "StopGrid" }

// OnBar arms the ladder on the first bar, then keeps the grid in sync with
// fills reported by the exchange. Fill detection uses the incremental
// orderId >= lastSeen contract of GetAllOrders.
func (s *StopGrid) OnBar(ex Exchange, index int, bar model.Kline) error {
	if !s.armed {
		if err := s.armLadder(ex, bar.Close); err != nil {
			return err
		}
		s.armed = true
		return nil
	}

	fills, err := ex.GetAllOrders(s.symbol, 0, s.lastSeenID)
	if err != nil {
		return err
	}
	for _, f := range fills {
		s.lastSeenID = f.OrderID + 1
		if _, ok := s.buys[f.OrderID]; ok {
			delete(s.buys, f.OrderID)
			if err := s.protect(ex, f); err != nil {
				return err
			}
			continue
		}
		if entry, ok := s.sells[f.OrderID]; ok {
			delete(s.sells, f.OrderID)
			if err := s.rearm(ex, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// armLadder places the initial BUY stops at close*(1+step*k).
func (s *StopGrid) armLadder(ex Exchange, close decimal.Decimal) error {
	one := decimal.NewFromInt(1)
	for k := 1; k <= s.levels; k++ {
		stop := close.Mul(one.Add(s.step.Mul(decimal.NewFromInt(int64(k)))))
		if err := s.placeBuy(ex, stop); err != nil {
			return err
		}
	}
	return nil
}

// protect places the SELL stop one step below a filled BUY's entry.
func (s *StopGrid) protect(ex Exchange, fill model.Order) error {
	stop := fill.StopPrice.Mul(decimal.NewFromInt(1).Sub(s.step))
	free := ex.GetAccount().Balance(baseAsset(s.symbol)).Free
	if free.LessThan(fill.ExecutedQty) {
		// Should not happen with full fills; leave the position unprotected
		// rather than place an order the exchange would reject.
		log.Printf("[stopgrid] cannot protect entry %s: free base %s < %s", fill.StopPrice, free, fill.ExecutedQty)
		return nil
	}
	o, err := ex.CreateOrder(model.CreateOrderRequest{
		Symbol:    s.symbol,
		Side:      model.SideSell,
		Type:      model.OrderTypeStopLoss,
		Quantity:  fill.ExecutedQty,
		StopPrice: stop,
	})
	if err != nil {
		return err
	}
	s.sells[o.OrderID] = fill.StopPrice
	return nil
}

// rearm re-places a BUY stop at a stopped-out level's entry price. The
// level stays disarmed while any unmatched earlier BUY sits above it.
func (s *StopGrid) rearm(ex Exchange, entry decimal.Decimal) error {
	for _, open := range s.sells {
		if entry.LessThan(open) {
			log.Printf("[stopgrid] level %s stays disarmed below unmatched entry %s", entry, open)
			return nil
		}
	}
	return s.placeBuy(ex, entry)
}

func (s *StopGrid) placeBuy(ex Exchange, stop decimal.Decimal) error {
	need := s.qty.Mul(stop)
	free := ex.GetAccount().Balance(quoteAsset(s.symbol)).Free
	if free.LessThan(need) {
		log.Printf("[stopgrid] skipping BUY stop %s: free quote %s < %s", stop, free, need)
		return nil
	}
	o, err := ex.CreateOrder(model.CreateOrderRequest{
		Symbol:    s.symbol,
		Side:      model.SideBuy,
		Type:      model.OrderTypeStopLoss,
		Quantity:  s.qty,
		StopPrice: stop,
	})
	if err != nil {
		return err
	}
	if s.lastSeenID == 0 {
		s.lastSeenID = o.OrderID
	}
	s.buys[o.OrderID] = stop
	return nil
}

func baseAsset(symbol string) string {
	base, _, _ := model.SplitSymbol(symbol)
	return base
}

func quoteAsset(symbol string) string {
	_, quote, _ := model.SplitSymbol(symbol)
	return quote
}
