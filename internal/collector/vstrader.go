package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"AlphaPulse/internal/model"
)

// VsTraderFetcher implements Fetcher using the vstrader REST API.
type VsTraderFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewVsTraderFetcher creates a new fetcher with optional proxy support.
func NewVsTraderFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *VsTraderFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VsTraderFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *VsTraderFetcher) Name() string { return "vstrader" }

// vsBar is the expected JSON shape from the vstrader API.
type vsBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type vsQuote struct {
	Price     float64 `json:"price"`
	PrevClose float64 `json:"prev_close"`
	Currency  string  `json:"currency"`
	Timestamp int64   `json:"timestamp"`
}

type vsFundamentals struct {
	Name      string   `json:"name"`
	Sector    *string  `json:"sector"`
	PE        *float64 `json:"pe"`
	EPS       *float64 `json:"eps"`
	MarketCap *float64 `json:"market_cap"`
	Volume    *int64   `json:"volume"`
	DayHigh   *float64 `json:"day_high"`
	DayLow    *float64 `json:"day_low"`
}

type vsNews struct {
	Title       string `json:"title"`
	Publisher   string `json:"publisher"`
	PublishedAt int64  `json:"published_at"`
	Link        string `json:"link"`
}

func (f *VsTraderFetcher) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	var result vsQuote
	if err := f.get(ctx, endpoint, &result); err != nil {
		return model.Quote{}, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	q, err := model.NewQuote(symbol, result.Price, result.PrevClose)
	if err != nil {
		return model.Quote{}, err
	}
	q.Currency = result.Currency
	if result.Timestamp > 0 {
		q.MarketTime = time.Unix(result.Timestamp, 0)
	}
	return q, nil
}

func (f *VsTraderFetcher) FetchFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	endpoint := fmt.Sprintf("%s/api/v1/fundamentals?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	var r vsFundamentals
	if err := f.get(ctx, endpoint, &r); err != nil {
		return model.Fundamentals{}, fmt.Errorf("fetch fundamentals %s: %w", symbol, err)
	}
	name := r.Name
	if name == "" {
		name = symbol
	}
	return model.Fundamentals{
		Symbol:    symbol,
		Name:      name,
		Sector:    r.Sector,
		PE:        r.PE,
		EPS:       r.EPS,
		MarketCap: r.MarketCap,
		Volume:    r.Volume,
		DayHigh:   r.DayHigh,
		DayLow:    r.DayLow,
	}, nil
}

func (f *VsTraderFetcher) FetchNews(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = model.MaxNewsItems
	}
	endpoint := fmt.Sprintf("%s/api/v1/news?symbol=%s&limit=%d", f.BaseURL, url.QueryEscape(symbol), limit)
	var raw []vsNews
	if err := f.get(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fetch news %s: %w", symbol, err)
	}
	items := make([]model.NewsItem, 0, len(raw))
	for _, n := range raw {
		if len(items) == limit {
			break
		}
		items = append(items, model.NewsItem{
			Title:       n.Title,
			Publisher:   n.Publisher,
			PublishedAt: time.Unix(n.PublishedAt, 0),
			Link:        n.Link,
		})
	}
	return items, nil
}

// FetchHistory maps period to a bar count. Weekly intervals use the weekly
// endpoint and fall back to aggregating daily bars.
func (f *VsTraderFetcher) FetchHistory(ctx context.Context, symbol, period, interval string) (model.Series, error) {
	if period == "" {
		period = model.DefaultHistoryPeriod
	}
	if interval == "" {
		interval = model.DefaultHistoryInterval
	}
	days := periodDays(period)

	var (
		bars []model.OHLCV
		err  error
	)
	switch interval {
	case "1wk":
		bars, err = f.fetchWeeklyBars(ctx, symbol, days/7+1)
	case "1d":
		bars, err = f.fetchDailyBars(ctx, symbol, days)
	default:
		return model.Series{}, unavailable("vstrader: unsupported interval %q", interval)
	}
	if err != nil {
		return model.Series{}, fmt.Errorf("fetch history %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return model.Series{}, noData("fetch history %s: no bars", symbol)
	}
	return model.Series{Symbol: symbol, Period: period, Interval: interval, Bars: bars}, nil
}

func (f *VsTraderFetcher) fetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", f.BaseURL, url.QueryEscape(symbol), days)
	return f.fetchBars(ctx, endpoint)
}

func (f *VsTraderFetcher) fetchWeeklyBars(ctx context.Context, symbol string, weeks int) ([]model.OHLCV, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/weekly?symbol=%s&limit=%d", f.BaseURL, url.QueryEscape(symbol), weeks)
	bars, err := f.fetchBars(ctx, endpoint)
	if err != nil {
		// Fallback: fetch enough daily bars and aggregate to weekly
		dailyBars, dailyErr := f.fetchDailyBars(ctx, symbol, weeks*7)
		if dailyErr != nil {
			return nil, fmt.Errorf("weekly fetch failed: %v; daily fallback also failed: %w", err, dailyErr)
		}
		return aggregateDailyToWeekly(dailyBars), nil
	}
	return bars, nil
}

func (f *VsTraderFetcher) get(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return unavailable("vstrader request: %v", err)
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return unavailable("vstrader: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return noData("vstrader: status 404")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return unavailable("vstrader: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return unavailable("vstrader decode: %v", err)
	}
	return nil
}

func (f *VsTraderFetcher) fetchBars(ctx context.Context, endpoint string) ([]model.OHLCV, error) {
	var vsBars []vsBar
	if err := f.get(ctx, endpoint, &vsBars); err != nil {
		return nil, err
	}
	bars := make([]model.OHLCV, len(vsBars))
	for i, vb := range vsBars {
		bars[i] = model.OHLCV{
			Time:   time.Unix(vb.Timestamp, 0),
			Open:   vb.Open,
			High:   vb.High,
			Low:    vb.Low,
			Close:  vb.Close,
			Volume: vb.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// periodDays converts a Yahoo-style period ("5d", "1mo", "6mo", "1y", "2y")
// into a trading-day count.
func periodDays(period string) int {
	switch period {
	case "5d":
		return 5
	case "1mo":
		return 22
	case "3mo":
		return 66
	case "6mo":
		return 126
	case "1y":
		return 252
	case "2y":
		return 504
	case "5y":
		return 1260
	default:
		return 126
	}
}

// aggregateDailyToWeekly converts daily bars into weekly bars (Mon-Fri).
func aggregateDailyToWeekly(daily []model.OHLCV) []model.OHLCV {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.OHLCV
	week := daily[0]
	wy, ww := week.Time.ISOWeek()

	for _, d := range daily[1:] {
		y, w := d.Time.ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week, wy, ww = d, y, w
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}
