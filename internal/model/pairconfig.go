package model

// PairConfig is one trading-pair row managed through the admin dashboard.
// Cash and Commission are kept as decimal strings end to end so the values
// round-trip the API and the database without float drift.
type PairConfig struct {
	Symbol     string `json:"symbol"`
	TF         string `json:"tf"`
	Cash       string `json:"cash"`       // starting quote cash for a run
	Commission string `json:"commission"` // rate, e.g. "0.001"
	Enabled    bool   `json:"enabled"`
	UpdatedAt  int64  `json:"updated_at"` // unix seconds
}
