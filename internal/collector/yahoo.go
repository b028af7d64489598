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

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(baseURL, proxyURL string, timeout time.Duration) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
			"TWII":   "^TWII",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooError is the error envelope shared by the chart and quoteSummary APIs.
type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string   `json:"currency"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
				PreviousClose      *float64 `json:"previousClose"`
				RegularMarketTime  int64    `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

// yahooRaw is Yahoo's {raw, fmt} number wrapper; missing values decode as {}.
type yahooRaw struct {
	Raw *float64 `json:"raw"`
}

type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName  string   `json:"longName"`
				ShortName string   `json:"shortName"`
				MarketCap yahooRaw `json:"marketCap"`
			} `json:"price"`
			SummaryProfile struct {
				Sector string `json:"sector"`
			} `json:"summaryProfile"`
			SummaryDetail struct {
				TrailingPE yahooRaw `json:"trailingPE"`
				Volume     yahooRaw `json:"volume"`
				DayHigh    yahooRaw `json:"dayHigh"`
				DayLow     yahooRaw `json:"dayLow"`
				MarketCap  yahooRaw `json:"marketCap"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingEps yahooRaw `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

type yahooSearch struct {
	News []struct {
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrProviderUnavailable)
}

func noData(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrNoData)
}

// get issues a GET and decodes JSON into dest. A 404 is reported as
// ErrNoData without decoding the body; other failures as
// ErrProviderUnavailable.
func (f *YahooFetcher) get(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return unavailable("yahoo request: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return unavailable("yahoo fetch: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable("yahoo read body: %v", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return noData("yahoo: status 404")
	case resp.StatusCode != http.StatusOK:
		return unavailable("yahoo: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return unavailable("yahoo decode: %v", err)
	}
	return nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) (*yahooChart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), url.QueryEscape(interval), url.QueryEscape(rng))

	var chart yahooChart
	if err := f.get(ctx, u, &chart); err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, noData("chart %s: yahoo api error: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, noData("chart %s: no result", symbol)
	}
	return &chart, nil
}

// FetchQuote reads the last price and previous close from the chart metadata.
func (f *YahooFetcher) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	chart, err := f.fetchChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return model.Quote{}, err
	}
	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil {
		return model.Quote{}, noData("quote %s: no price", symbol)
	}

	prev := 0.0
	switch {
	case meta.ChartPreviousClose != nil:
		prev = *meta.ChartPreviousClose
	case meta.PreviousClose != nil:
		prev = *meta.PreviousClose
	}

	q, err := model.NewQuote(symbol, *meta.RegularMarketPrice, prev)
	if err != nil {
		return model.Quote{}, err
	}
	q.Currency = meta.Currency
	if meta.RegularMarketTime > 0 {
		q.MarketTime = time.Unix(meta.RegularMarketTime, 0)
	}
	return q, nil
}

// FetchHistory returns chronologically ordered bars, skipping null bars.
func (f *YahooFetcher) FetchHistory(ctx context.Context, symbol, period, interval string) (model.Series, error) {
	if period == "" {
		period = model.DefaultHistoryPeriod
	}
	if interval == "" {
		interval = model.DefaultHistoryInterval
	}
	chart, err := f.fetchChart(ctx, symbol, interval, period)
	if err != nil {
		return model.Series{}, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return model.Series{}, noData("history %s: no bars", symbol)
	}
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return model.Series{}, noData("history %s: only null bars", symbol)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return model.Series{Symbol: symbol, Period: period, Interval: interval, Bars: bars}, nil
}

func (f *YahooFetcher) FetchFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price,summaryProfile,summaryDetail,defaultKeyStatistics",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)))

	var summary yahooSummary
	if err := f.get(ctx, u, &summary); err != nil {
		return model.Fundamentals{}, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}
	if summary.QuoteSummary.Error != nil {
		return model.Fundamentals{}, noData("fundamentals %s: yahoo api error: %s", symbol, summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return model.Fundamentals{}, noData("fundamentals %s: no result", symbol)
	}

	r := summary.QuoteSummary.Result[0]
	fund := model.Fundamentals{
		Symbol:  symbol,
		Name:    r.Price.LongName,
		PE:      r.SummaryDetail.TrailingPE.Raw,
		EPS:     r.DefaultKeyStatistics.TrailingEps.Raw,
		DayHigh: r.SummaryDetail.DayHigh.Raw,
		DayLow:  r.SummaryDetail.DayLow.Raw,
	}
	if fund.Name == "" {
		fund.Name = r.Price.ShortName
	}
	if fund.Name == "" {
		fund.Name = symbol
	}
	if r.SummaryProfile.Sector != "" {
		sector := r.SummaryProfile.Sector
		fund.Sector = &sector
	}
	fund.MarketCap = r.Price.MarketCap.Raw
	if fund.MarketCap == nil {
		fund.MarketCap = r.SummaryDetail.MarketCap.Raw
	}
	if v := r.SummaryDetail.Volume.Raw; v != nil {
		vol := int64(*v)
		fund.Volume = &vol
	}
	return fund, nil
}

// FetchNews returns up to limit headlines in provider order.
func (f *YahooFetcher) FetchNews(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = model.MaxNewsItems
	}
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=0&newsCount=%d",
		f.BaseURL, url.QueryEscape(f.yahooSymbol(symbol)), limit)

	var search yahooSearch
	if err := f.get(ctx, u, &search); err != nil {
		return nil, fmt.Errorf("news %s: %w", symbol, err)
	}

	items := make([]model.NewsItem, 0, len(search.News))
	for _, n := range search.News {
		if len(items) == limit {
			break
		}
		items = append(items, model.NewsItem{
			Title:       n.Title,
			Publisher:   n.Publisher,
			PublishedAt: time.Unix(n.ProviderPublishTime, 0),
			Link:        n.Link,
		})
	}
	return items, nil
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
