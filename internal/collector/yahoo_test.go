package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"AlphaPulse/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartOK = `{"chart":{"result":[{
  "meta":{"currency":"TWD","regularMarketPrice":580,"chartPreviousClose":575,"regularMarketTime":1735776000},
  "timestamp":[1735689600,1735776000,1735862400],
  "indicators":{"quote":[{
    "open":[570,null,578],"high":[576,null,582],"low":[568,null,574],
    "close":[575,null,580],"volume":[1000,null,2000]}]}}],
  "error":null}}`

const chartNotFound = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

const summaryOK = `{"quoteSummary":{"result":[{
  "price":{"longName":"Taiwan Semiconductor Manufacturing Company Limited","shortName":"TSMC","marketCap":{"raw":15040000000000,"fmt":"15.04T"}},
  "summaryProfile":{"sector":"Technology"},
  "summaryDetail":{"trailingPE":{"raw":24.1,"fmt":"24.10"},"volume":{"raw":31000000},"dayHigh":{"raw":582},"dayLow":{"raw":574},"marketCap":{}},
  "defaultKeyStatistics":{"trailingEps":{}}}],"error":null}}`

const searchOK = `{"news":[
  {"title":"TSMC beats","publisher":"Reuters","link":"https://r/1","providerPublishTime":1735776000},
  {"title":"Chip demand","publisher":"Bloomberg","link":"https://b/2","providerPublishTime":1735689600},
  {"title":"Third","publisher":"CNA","link":"https://c/3","providerPublishTime":1735603200}]}`

func yahooServer(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for prefix, h := range routes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				h(w, r)
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewYahooFetcher(srv.URL, "", 5*time.Second)
}

func respond(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestYahooFetcher_FetchQuote(t *testing.T) {
	var gotPath, gotQuery string
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": func(w http.ResponseWriter, r *http.Request) {
			gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
			respond(http.StatusOK, chartOK)(w, r)
		},
	})

	q, err := f.FetchQuote(context.Background(), "2330.TW")
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/2330.TW", gotPath)
	assert.Contains(t, gotQuery, "range=1d")
	assert.Equal(t, 580.0, q.Price)
	assert.Equal(t, 575.0, q.PrevClose)
	assert.InDelta(t, 5.0, q.Change, 1e-9)
	require.NotNil(t, q.ChangePct)
	assert.InDelta(t, 0.8696, *q.ChangePct, 1e-4)
	assert.Equal(t, "TWD", q.Currency)
}

func TestYahooFetcher_SymbolAlias(t *testing.T) {
	var gotPath string
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			respond(http.StatusOK, chartOK)(w, r)
		},
	})
	_, err := f.FetchQuote(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
}

func TestYahooFetcher_UnknownSymbolIsNoData(t *testing.T) {
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": respond(http.StatusNotFound, chartNotFound),
	})
	_, err := f.FetchQuote(context.Background(), "ZZZZ999.TW")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNoData), "got %v", err)
	assert.False(t, errors.Is(err, model.ErrProviderUnavailable))
}

func TestYahooFetcher_ErrorEnvelopeIsNoData(t *testing.T) {
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": respond(http.StatusOK, chartNotFound),
	})
	_, err := f.FetchQuote(context.Background(), "ZZZZ999.TW")
	assert.True(t, errors.Is(err, model.ErrNoData), "got %v", err)
}

func TestYahooFetcher_ServerErrorIsUnavailable(t *testing.T) {
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": respond(http.StatusBadGateway, "upstream down"),
	})
	_, err := f.FetchQuote(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, model.ErrProviderUnavailable), "got %v", err)
}

func TestYahooFetcher_MalformedBodyIsUnavailable(t *testing.T) {
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": respond(http.StatusOK, "{not json"),
	})
	_, err := f.FetchQuote(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, model.ErrProviderUnavailable), "got %v", err)
}

func TestYahooFetcher_ZeroPriceIsNoData(t *testing.T) {
	body := strings.Replace(chartOK, `"regularMarketPrice":580`, `"regularMarketPrice":0`, 1)
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": respond(http.StatusOK, body),
	})
	_, err := f.FetchQuote(context.Background(), "2330.TW")
	assert.True(t, errors.Is(err, model.ErrNoData), "got %v", err)
}

func TestYahooFetcher_FetchHistorySkipsNullBars(t *testing.T) {
	var gotQuery string
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			respond(http.StatusOK, chartOK)(w, r)
		},
	})

	s, err := f.FetchHistory(context.Background(), "2330.TW", "", "")
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "interval=1d")
	assert.Contains(t, gotQuery, "range=6mo")
	require.Len(t, s.Bars, 2)
	assert.Equal(t, 575.0, s.Bars[0].Close)
	assert.Equal(t, 580.0, s.Bars[1].Close)
	assert.True(t, s.Bars[0].Time.Before(s.Bars[1].Time))
	assert.Equal(t, "6mo", s.Period)
}

func TestYahooFetcher_FetchFundamentals(t *testing.T) {
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v10/finance/quoteSummary/": respond(http.StatusOK, summaryOK),
	})

	fund, err := f.FetchFundamentals(context.Background(), "2330.TW")
	require.NoError(t, err)
	assert.Equal(t, "Taiwan Semiconductor Manufacturing Company Limited", fund.Name)
	require.NotNil(t, fund.Sector)
	assert.Equal(t, "Technology", *fund.Sector)
	require.NotNil(t, fund.PE)
	assert.Equal(t, 24.1, *fund.PE)
	assert.Nil(t, fund.EPS, "empty raw object is absent, not zero")
	require.NotNil(t, fund.MarketCap)
	assert.Equal(t, 15040000000000.0, *fund.MarketCap)
	require.NotNil(t, fund.Volume)
	assert.Equal(t, int64(31000000), *fund.Volume)
}

func TestYahooFetcher_FetchNewsHonoursLimit(t *testing.T) {
	var gotQuery string
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v1/finance/search": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			respond(http.StatusOK, searchOK)(w, r)
		},
	})

	items, err := f.FetchNews(context.Background(), "2330.TW", 2)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "newsCount=2")
	require.Len(t, items, 2)
	assert.Equal(t, "TSMC beats", items[0].Title)
	assert.Equal(t, "Reuters", items[0].Publisher)
	assert.Equal(t, time.Unix(1735776000, 0), items[0].PublishedAt)
}

func TestYahooFetcher_ContextCancelled(t *testing.T) {
	f := yahooServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/v8/finance/chart/": respond(http.StatusOK, chartOK),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FetchQuote(ctx, "AAPL")
	assert.True(t, errors.Is(err, model.ErrProviderUnavailable), "got %v", err)
}
