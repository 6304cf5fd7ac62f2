package model

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Kline represents one OHLCV bar for a (symbol, timeframe) series.
// OpenTime is milliseconds UTC. Bars are immutable once loaded: every price
// and trigger decision in the backtester reads them as persisted, with no
// resampling or gap-filling.
type Kline struct {
	Symbol   string          `json:"symbol"`
	TF       string          `json:"tf"` // timeframe label, e.g. "1m", "1h"
	OpenTime int64           `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// Key returns a unique key for this kline's series: "symbol:tf".
func (k *Kline) Key() string {
	return k.Symbol + ":" + k.TF
}

// JSON returns the JSON-encoded kline (ignoring errors for hot-path usage).
func (k *Kline) JSON() []byte {
	b, _ := json.Marshal(k)
	return b
}

// knownQuotes are the quote-asset suffixes recognized by SplitSymbol,
// longest first so USDT wins over USD.
var knownQuotes = []string{"USDT", "USDC", "BUSD", "TUSD", "USD", "EUR", "BTC", "ETH", "BNB"}

// SplitSymbol splits a concatenated pair like "ADAUSDC" into base and quote
// assets by matching known quote suffixes. "ADA/USDC" and "ADA-USDC" forms
// are accepted too. Returns ok=false when no split can be made.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", "", false
	}
	for _, sep := range []string{"/", "-"} {
		if i := strings.Index(s, sep); i > 0 && i < len(s)-1 {
			return s[:i], s[i+1:], true
		}
	}
	for _, q := range knownQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, true
		}
	}
	return "", "", false
}
