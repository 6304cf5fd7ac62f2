// Package strategy defines the exchange surface a trading strategy sees and
// the callback contract the backtest engine drives.
//
// A Strategy receives one callback per bar and reacts by calling the
// exchange: placing or canceling stop orders, reading its account, reading
// klines. The exchange dependency is injected, so the same strategy code
// runs against the mock exchange in a backtest or a real client in live
// trading without knowing which it talks to.
package strategy

import (
	"tradebotv1/internal/model"
)

// Exchange is the exchange-shaped dependency a strategy trades through.
// The mock exchange implements it for backtests.
type Exchange interface {
	GetKlines(symbol, interval string, limit int, startTime, endTime int64) ([]model.Kline, error)
	GetAllOrders(symbol string, limit int, orderID int64) ([]model.Order, error)
	GetOpenOrders(symbol string) []model.Order
	GetAccount() model.Account
	CreateOrder(req model.CreateOrderRequest) (model.Order, error)
	CancelOrder(symbol string, orderID int64, clientOrderID string) (model.Order, error)
}

// Strategy is the per-bar decision callback. OnBar runs before the
// exchange's trigger pass for that bar, so orders placed here can fill on
// the same bar's high/low. Any error aborts the run.
type Strategy interface {
	// Name identifies the strategy in logs and run records.
	Name() string

	// OnBar is called once per bar with the bar's index in the loaded series.
	OnBar(ex Exchange, index int, bar model.Kline) error
}
