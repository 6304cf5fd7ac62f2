package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Balance is one asset row of an account snapshot. Free is computed as
// total - locked at snapshot time and never persisted.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

type balanceJSON struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// MarshalJSON encodes the balance with exchange-style string decimals.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(balanceJSON{
		Asset:  b.Asset,
		Free:   b.Free.String(),
		Locked: b.Locked.String(),
	})
}

// UnmarshalJSON decodes the exchange-style balance row.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var w balanceJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	free, err := decimal.NewFromString(w.Free)
	if err != nil {
		return err
	}
	locked, err := decimal.NewFromString(w.Locked)
	if err != nil {
		return err
	}
	*b = Balance{Asset: w.Asset, Free: free, Locked: locked}
	return nil
}

// Account is the exchange account snapshot: exactly the base and quote
// assets of the configured symbol, zero rows included.
type Account struct {
	Balances []Balance `json:"balances"`
}

// Balance returns the row for asset, or a zero row with the same shape when
// the asset is not tracked.
func (a Account) Balance(asset string) Balance {
	for _, b := range a.Balances {
		if b.Asset == asset {
			return b
		}
	}
	return Balance{Asset: asset}
}
