package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a live price snapshot. It is always derived from the latest
// provider response and never persisted.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	PrevClose  float64   `json:"prev_close"`
	Change     float64   `json:"change"`
	ChangePct  *float64  `json:"change_pct"` // nil when prev close is zero
	Currency   string    `json:"currency,omitempty"`
	MarketTime time.Time `json:"market_time,omitempty"`
}

// NewQuote builds a Quote and derives change and percent change.
// A non-positive price is reported as ErrNoData.
func NewQuote(symbol string, price, prevClose float64) (Quote, error) {
	if price <= 0 {
		return Quote{}, fmt.Errorf("quote %s: non-positive price %v: %w", symbol, price, ErrNoData)
	}
	p := decimal.NewFromFloat(price)
	prev := decimal.NewFromFloat(prevClose)
	change := p.Sub(prev)

	q := Quote{
		Symbol:    symbol,
		Price:     price,
		PrevClose: prevClose,
		Change:    change.InexactFloat64(),
	}
	if !prev.IsZero() {
		pct := change.Div(prev).Mul(decimal.NewFromInt(100)).InexactFloat64()
		q.ChangePct = &pct
	}
	return q, nil
}

// Valid reports whether the quote carries a usable price.
func (q Quote) Valid() bool { return q.Price > 0 }

// PctDefined reports whether percent change could be computed.
func (q Quote) PctDefined() bool { return q.ChangePct != nil }

// Up reports whether the price moved up against the previous close.
func (q Quote) Up() bool { return q.Change > 0 }
