package collector

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"AlphaPulse/internal/model"
)

// MockFetcher returns deterministic data for development. Symbols listed in
// Unknown report ErrNoData on every call.
type MockFetcher struct {
	Price     float64
	PrevClose float64
	Unknown   map[string]bool
	Now       func() time.Time
}

// NewMockFetcher returns a MockFetcher priced around price.
func NewMockFetcher(price float64) *MockFetcher {
	return &MockFetcher{Price: price, PrevClose: price * 0.99, Now: time.Now}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) check(symbol string) error {
	if m.Unknown[symbol] {
		return noData("mock: unknown symbol %s", symbol)
	}
	return nil
}

func (m *MockFetcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockFetcher) FetchQuote(_ context.Context, symbol string) (model.Quote, error) {
	if err := m.check(symbol); err != nil {
		return model.Quote{}, err
	}
	q, err := model.NewQuote(symbol, m.Price, m.PrevClose)
	if err != nil {
		return model.Quote{}, err
	}
	q.MarketTime = m.now()
	return q, nil
}

func (m *MockFetcher) FetchFundamentals(_ context.Context, symbol string) (model.Fundamentals, error) {
	if err := m.check(symbol); err != nil {
		return model.Fundamentals{}, err
	}
	sector := "Technology"
	pe, eps := 18.5, m.Price/18.5
	capital := m.Price * 1e9
	vol := int64(25_000_000)
	high, low := m.Price*1.01, m.Price*0.99
	return model.Fundamentals{
		Symbol:    symbol,
		Name:      strings.TrimSuffix(symbol, ".TW") + " Mock Corp",
		Sector:    &sector,
		PE:        &pe,
		EPS:       &eps,
		MarketCap: &capital,
		Volume:    &vol,
		DayHigh:   &high,
		DayLow:    &low,
	}, nil
}

func (m *MockFetcher) FetchNews(_ context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	if err := m.check(symbol); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = model.MaxNewsItems
	}
	now := m.now()
	items := make([]model.NewsItem, limit)
	for i := range items {
		items[i] = model.NewsItem{
			Title:       fmt.Sprintf("%s headline #%d", symbol, i+1),
			Publisher:   "Mock Wire",
			PublishedAt: now.Add(-time.Duration(i) * time.Hour),
			Link:        fmt.Sprintf("https://example.com/news/%s/%d", symbol, i+1),
		}
	}
	return items, nil
}

func (m *MockFetcher) FetchHistory(_ context.Context, symbol, period, interval string) (model.Series, error) {
	if err := m.check(symbol); err != nil {
		return model.Series{}, err
	}
	if period == "" {
		period = model.DefaultHistoryPeriod
	}
	if interval == "" {
		interval = model.DefaultHistoryInterval
	}
	return model.Series{
		Symbol:   symbol,
		Period:   period,
		Interval: interval,
		Bars:     generateMockBars(m.Price, periodDays(period), m.now()),
	}, nil
}

func generateMockBars(basePrice float64, count int, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.03*math.Sin(float64(i)/7) + float64(i-count/2)*0.0005)
		bars[i] = model.OHLCV{
			Time:   end.AddDate(0, 0, -(count - i)),
			Open:   p * 0.998,
			High:   p * 1.006,
			Low:    p * 0.993,
			Close:  p,
			Volume: 1_000_000 + float64(i%10)*50_000,
		}
	}
	return bars
}
