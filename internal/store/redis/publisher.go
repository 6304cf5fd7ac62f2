// Package redis publishes backtest run events so the admin dashboard can
// tail live runs. Events go to a capped stream for history and to a
// per-run PubSub channel for the websocket fan-out.
//
// Publishing is best-effort: a run never blocks, fails, or changes outcome
// because the dashboard plumbing is down. A nil *Publisher is safe to call,
// so the CLI can run without Redis configured.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"tradebotv1/internal/model"
)

const (
	eventStream    = "bt:events"
	eventStreamMax = 50000
	pubsubPrefix   = "pub:bt:"
	publishTimeout = 2 * time.Second
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes run lifecycle events to Redis.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client {
	if p == nil {
		return nil
	}
	return p.client
}

// New creates a Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// RunStarted announces a new run.
func (p *Publisher) RunStarted(runID, symbol, tf string, bars int) {
	p.emit(runID, map[string]any{
		"type":   "run_started",
		"run_id": runID,
		"symbol": symbol,
		"tf":     tf,
		"bars":   bars,
	})
}

// Fill announces one filled order.
func (p *Publisher) Fill(runID string, o model.Order) {
	p.emit(runID, map[string]any{
		"type":       "fill",
		"run_id":     runID,
		"order_id":   o.OrderID,
		"symbol":     o.Symbol,
		"side":       string(o.Side),
		"stop_price": o.StopPrice.String(),
		"qty":        o.ExecutedQty.String(),
		"quote_qty":  o.CummulativeQuoteQty.String(),
		"fill_time":  o.UpdateTime,
	})
}

// Equity announces the portfolio value after one bar.
func (p *Publisher) Equity(runID string, index int, openTime int64, value decimal.Decimal) {
	p.emit(runID, map[string]any{
		"type":      "equity",
		"run_id":    runID,
		"bar":       index,
		"open_time": openTime,
		"value":     value.String(),
	})
}

// RunFinished announces the run's final portfolio value.
func (p *Publisher) RunFinished(runID string, finalValue decimal.Decimal) {
	p.emit(runID, map[string]any{
		"type":        "run_finished",
		"run_id":      runID,
		"final_value": finalValue.String(),
	})
}

func (p *Publisher) emit(runID string, fields map[string]any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream:       eventStream,
		MaxLenApprox: eventStreamMax,
		Values:       fields,
	}).Err(); err != nil {
		log.Printf("[redis] xadd %s failed: %v", eventStream, err)
	}

	payload, err := marshalEvent(fields)
	if err != nil {
		log.Printf("[redis] marshal event failed: %v", err)
		return
	}
	if err := p.client.Publish(ctx, pubsubPrefix+runID, payload).Err(); err != nil {
		log.Printf("[redis] publish %s failed: %v", pubsubPrefix+runID, err)
	}
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
