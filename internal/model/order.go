package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the order type. STOP_LOSS is the only type the mock exchange
// supports; everything else is rejected before any state mutation.
type OrderType string

const (
	OrderTypeStopLoss OrderType = "STOP_LOSS"
)

// OrderStatus is the order lifecycle state. Once an order leaves NEW the
// status is terminal and the order is never mutated again.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
)

// Order mirrors the exchange's JSON order object field-for-field, including
// the cummulativeQuoteQty spelling. Price stays "0" for STOP_LOSS orders;
// the trigger price lives in StopPrice. Time and UpdateTime carry the
// open_time of the bar on which the relevant event (create, fill, cancel)
// happened, in milliseconds.
type Order struct {
	OrderID             int64
	ClientOrderID       string // opaque passthrough, empty if not supplied
	Symbol              string
	Side                Side
	Type                OrderType
	Price               decimal.Decimal
	StopPrice           decimal.Decimal
	OrigQty             decimal.Decimal
	ExecutedQty         decimal.Decimal
	CummulativeQuoteQty decimal.Decimal
	Status              OrderStatus
	Time                int64
	UpdateTime          int64
}

type orderJSON struct {
	OrderID             int64  `json:"orderId"`
	Symbol              string `json:"symbol"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Price               string `json:"price"`
	StopPrice           string `json:"stopPrice"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	Time                int64  `json:"time"`
	UpdateTime          int64  `json:"updateTime"`
	ClientOrderID       string `json:"clientOrderId,omitempty"`
}

// MarshalJSON encodes the order with exchange-style string decimals.
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		OrderID:             o.OrderID,
		Symbol:              o.Symbol,
		Type:                string(o.Type),
		Side:                string(o.Side),
		Price:               o.Price.String(),
		StopPrice:           o.StopPrice.String(),
		OrigQty:             o.OrigQty.String(),
		ExecutedQty:         o.ExecutedQty.String(),
		CummulativeQuoteQty: o.CummulativeQuoteQty.String(),
		Status:              string(o.Status),
		Time:                o.Time,
		UpdateTime:          o.UpdateTime,
		ClientOrderID:       o.ClientOrderID,
	})
}

// UnmarshalJSON decodes the exchange-style order object.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w orderJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	price, err := decimal.NewFromString(w.Price)
	if err != nil {
		return err
	}
	stop, err := decimal.NewFromString(w.StopPrice)
	if err != nil {
		return err
	}
	origQty, err := decimal.NewFromString(w.OrigQty)
	if err != nil {
		return err
	}
	execQty, err := decimal.NewFromString(w.ExecutedQty)
	if err != nil {
		return err
	}
	quoteQty, err := decimal.NewFromString(w.CummulativeQuoteQty)
	if err != nil {
		return err
	}
	*o = Order{
		OrderID:             w.OrderID,
		ClientOrderID:       w.ClientOrderID,
		Symbol:              w.Symbol,
		Side:                Side(w.Side),
		Type:                OrderType(w.Type),
		Price:               price,
		StopPrice:           stop,
		OrigQty:             origQty,
		ExecutedQty:         execQty,
		CummulativeQuoteQty: quoteQty,
		Status:              OrderStatus(w.Status),
		Time:                w.Time,
		UpdateTime:          w.UpdateTime,
	}
	return nil
}

// CreateOrderRequest carries the parameters of a create-order call.
// Price and TimeInForce are accepted for API-shape compatibility and
// ignored for STOP_LOSS orders.
type CreateOrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	StopPrice     decimal.Decimal
	Price         decimal.Decimal
	TimeInForce   string
	ClientOrderID string
}
