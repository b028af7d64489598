// Package collector holds the market data providers and their decorators.
package collector

import (
	"context"

	"AlphaPulse/internal/model"
)

// Capability names one provider call; used for cache keys, logs and metrics.
type Capability string

const (
	CapQuote        Capability = "quote"
	CapFundamentals Capability = "fundamentals"
	CapNews         Capability = "news"
	CapHistory      Capability = "history"
)

// Fetcher defines the interface for fetching market data for a canonical symbol.
// Each call fails independently with an error wrapping model.ErrProviderUnavailable
// or model.ErrNoData.
type Fetcher interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
	FetchFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error)
	FetchNews(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error)
	FetchHistory(ctx context.Context, symbol, period, interval string) (model.Series, error)
}
