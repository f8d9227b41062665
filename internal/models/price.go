package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerQuote is one ticker's entry in a price snapshot. Nil fields mean the
// quote could not be fetched.
type TickerQuote struct {
	Ticker        string           `json:"ticker"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
	LastFetched   *time.Time       `json:"last_fetched,omitempty"`
}

// PriceSnapshot maps uppercase tickers to their latest quotes
type PriceSnapshot map[string]TickerQuote

// PriceResponse is the wire shape of the prices endpoint
type PriceResponse struct {
	Prices []TickerQuote `json:"prices"`
}
