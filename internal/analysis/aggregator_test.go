package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"AlphaPulse/internal/analysis"
	"AlphaPulse/internal/chart"
	"AlphaPulse/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func quote(t *testing.T, symbol string, price, prev float64) model.Quote {
	t.Helper()
	q, err := model.NewQuote(symbol, price, prev)
	require.NoError(t, err)
	return q
}

func history(symbol string, n int) model.Series {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		p := 560 + float64(i%7)
		bars[i] = model.OHLCV{Time: start.AddDate(0, 0, i), Open: p - 1, High: p + 3, Low: p - 3, Close: p, Volume: 1e6}
	}
	return model.Series{Symbol: symbol, Period: "6mo", Interval: "1d", Bars: bars}
}

func news(n int) []model.NewsItem {
	items := make([]model.NewsItem, n)
	for i := range items {
		items[i] = model.NewsItem{Title: fmt.Sprintf("headline %d", i+1), Publisher: "CNA"}
	}
	return items
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (s *statusRecorder) RecordAnalysis(status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *statusRecorder) RecordRefresh(int, int, time.Duration) {}

func TestAnalyze_FoundWithAllFacets(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)
	ctx := context.Background()

	f.EXPECT().FetchQuote(gomock.Any(), "2330.TW").Return(quote(t, "2330.TW", 580, 575), nil)
	f.EXPECT().FetchFundamentals(gomock.Any(), "2330.TW").Return(model.Fundamentals{Symbol: "2330.TW", Name: "TSMC"}, nil)
	f.EXPECT().FetchNews(gomock.Any(), "2330.TW", model.MaxNewsItems).Return(news(7), nil)
	f.EXPECT().FetchHistory(gomock.Any(), "2330.TW", "6mo", "1d").Return(history("2330.TW", 90), nil)

	obs := &statusRecorder{}
	agg := analysis.NewAggregator(f, chart.NewCandleRenderer(400, 240), zerolog.Nop(), analysis.WithObserver(obs))
	res := agg.Analyze(ctx, "2330.TW")

	assert.Equal(t, model.StatusFound, res.Status)
	assert.True(t, res.Found())
	require.NotNil(t, res.Quote)
	assert.InDelta(t, 5.0, res.Quote.Change, 1e-9)
	require.NotNil(t, res.Quote.ChangePct)
	assert.InDelta(t, 0.870, *res.Quote.ChangePct, 1e-3)
	require.NotNil(t, res.Fundamentals)
	assert.Equal(t, "TSMC", res.Fundamentals.Name)
	assert.Len(t, res.News, model.MaxNewsItems)
	assert.Equal(t, "headline 1", res.News[0].Title)
	assert.True(t, res.HasChart())
	require.NotNil(t, res.Technicals)
	assert.NotNil(t, res.Technicals.MA60)
	assert.Empty(t, res.Missing)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, []string{"FOUND"}, obs.statuses)
}

func TestAnalyze_FundamentalsFailureKeepsFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)

	f.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quote(t, "AAPL", 190, 188), nil)
	f.EXPECT().FetchFundamentals(gomock.Any(), "AAPL").
		Return(model.Fundamentals{}, fmt.Errorf("summary: %w", model.ErrProviderUnavailable))
	f.EXPECT().FetchNews(gomock.Any(), "AAPL", gomock.Any()).Return(news(2), nil)
	f.EXPECT().FetchHistory(gomock.Any(), "AAPL", gomock.Any(), gomock.Any()).Return(history("AAPL", 30), nil)

	res := analysis.NewAggregator(f, chart.NewCandleRenderer(300, 200), zerolog.Nop()).Analyze(context.Background(), "AAPL")

	assert.Equal(t, model.StatusFound, res.Status)
	assert.Nil(t, res.Fundamentals)
	assert.Contains(t, res.Missing, model.FacetFundamentals)
	assert.Len(t, res.News, 2)
	assert.True(t, res.HasChart())
}

func TestAnalyze_EveryBestEffortFacetFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)
	down := fmt.Errorf("timeout: %w", model.ErrProviderUnavailable)

	f.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quote(t, "AAPL", 190, 188), nil)
	f.EXPECT().FetchFundamentals(gomock.Any(), "AAPL").Return(model.Fundamentals{}, down)
	f.EXPECT().FetchNews(gomock.Any(), "AAPL", gomock.Any()).Return(nil, down)
	f.EXPECT().FetchHistory(gomock.Any(), "AAPL", gomock.Any(), gomock.Any()).Return(model.Series{}, down)

	res := analysis.NewAggregator(f, chart.NewCandleRenderer(0, 0), zerolog.Nop()).Analyze(context.Background(), "AAPL")

	assert.Equal(t, model.StatusFound, res.Status)
	assert.Empty(t, res.Reason)
	assert.Nil(t, res.Fundamentals)
	assert.Nil(t, res.News)
	assert.False(t, res.HasChart())
	assert.Nil(t, res.Technicals)
	assert.Len(t, res.Missing, 3)
}

func TestAnalyze_RenderFailureKeepsTechnicals(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)

	f.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quote(t, "AAPL", 190, 188), nil)
	f.EXPECT().FetchFundamentals(gomock.Any(), "AAPL").Return(model.Fundamentals{Symbol: "AAPL"}, nil)
	f.EXPECT().FetchNews(gomock.Any(), "AAPL", gomock.Any()).Return(nil, nil)
	f.EXPECT().FetchHistory(gomock.Any(), "AAPL", gomock.Any(), gomock.Any()).Return(history("AAPL", 30), nil)

	broken := chart.RenderFunc(func(model.Series) ([]byte, error) {
		return nil, fmt.Errorf("encode: %w", model.ErrRenderFailure)
	})
	res := analysis.NewAggregator(f, broken, zerolog.Nop()).Analyze(context.Background(), "AAPL")

	assert.Equal(t, model.StatusFound, res.Status)
	assert.False(t, res.HasChart())
	assert.Contains(t, res.Missing, model.FacetChart)
	assert.NotNil(t, res.Technicals)
	require.NotNil(t, res.Fundamentals)
	assert.Equal(t, "AAPL", res.Fundamentals.DisplayName())
}

func TestAnalyze_NoDataShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)

	// Only the quote is expected; any other call fails the test.
	f.EXPECT().FetchQuote(gomock.Any(), "ZZZZ999.TW").
		Return(model.Quote{}, fmt.Errorf("chart: %w", model.ErrNoData))

	obs := &statusRecorder{}
	res := analysis.NewAggregator(f, chart.NewCandleRenderer(0, 0), zerolog.Nop(), analysis.WithObserver(obs)).
		Analyze(context.Background(), "ZZZZ999.TW")

	assert.Equal(t, model.StatusNotFound, res.Status)
	assert.Equal(t, model.ReasonNotFound, res.Reason)
	assert.Nil(t, res.Quote)
	assert.Nil(t, res.Fundamentals)
	assert.Nil(t, res.News)
	assert.Nil(t, res.Chart)
	assert.Nil(t, res.Technicals)
	assert.Equal(t, []string{"NOT_FOUND"}, obs.statuses)
}

func TestAnalyze_ProviderErrorIsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)
	f.EXPECT().FetchQuote(gomock.Any(), "AAPL").
		Return(model.Quote{}, fmt.Errorf("dial tcp: %w", model.ErrProviderUnavailable))

	res := analysis.NewAggregator(f, chart.NewCandleRenderer(0, 0), zerolog.Nop()).Analyze(context.Background(), "AAPL")

	assert.Equal(t, model.StatusUnavailable, res.Status)
	assert.Equal(t, model.ReasonUnavailable, res.Reason)
	assert.NotEqual(t, model.ReasonNotFound, res.Reason)
}

func TestAnalyze_NonPositivePriceIsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)
	f.EXPECT().FetchQuote(gomock.Any(), "DEAD").Return(model.Quote{Symbol: "DEAD", Price: 0}, nil)

	res := analysis.NewAggregator(f, chart.NewCandleRenderer(0, 0), zerolog.Nop()).Analyze(context.Background(), "DEAD")
	assert.Equal(t, model.StatusNotFound, res.Status)
	assert.Nil(t, res.Quote)
}

func TestAnalyze_ZeroPrevCloseLeavesPercentUndefined(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)
	f.EXPECT().FetchQuote(gomock.Any(), "IPO").Return(quote(t, "IPO", 42, 0), nil)
	f.EXPECT().FetchFundamentals(gomock.Any(), "IPO").Return(model.Fundamentals{}, nil)
	f.EXPECT().FetchNews(gomock.Any(), "IPO", gomock.Any()).Return(nil, nil)
	f.EXPECT().FetchHistory(gomock.Any(), "IPO", gomock.Any(), gomock.Any()).Return(model.Series{}, fmt.Errorf("x: %w", model.ErrNoData))

	res := analysis.NewAggregator(f, chart.NewCandleRenderer(0, 0), zerolog.Nop()).Analyze(context.Background(), "IPO")

	assert.Equal(t, model.StatusFound, res.Status)
	require.NotNil(t, res.Quote)
	assert.False(t, res.Quote.PctDefined())
	require.NotNil(t, res.Fundamentals)
	assert.Equal(t, "IPO", res.Fundamentals.Name)
}

func TestAnalyze_FacetsRunConcurrently(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)

	var started sync.WaitGroup
	started.Add(3)
	barrier := func() error {
		started.Done()
		done := make(chan struct{})
		go func() { started.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("facets did not overlap")
		}
	}

	f.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quote(t, "AAPL", 190, 188), nil)
	f.EXPECT().FetchFundamentals(gomock.Any(), "AAPL").DoAndReturn(func(context.Context, string) (model.Fundamentals, error) {
		return model.Fundamentals{Symbol: "AAPL"}, barrier()
	})
	f.EXPECT().FetchNews(gomock.Any(), "AAPL", gomock.Any()).DoAndReturn(func(context.Context, string, int) ([]model.NewsItem, error) {
		return news(1), barrier()
	})
	f.EXPECT().FetchHistory(gomock.Any(), "AAPL", gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string, string, string) (model.Series, error) {
		return history("AAPL", 20), barrier()
	})

	res := analysis.NewAggregator(f, chart.NewCandleRenderer(300, 200), zerolog.Nop()).Analyze(context.Background(), "AAPL")
	assert.Empty(t, res.Missing)
	assert.NotNil(t, res.Fundamentals)
	assert.Len(t, res.News, 1)
	assert.True(t, res.HasChart())
}

func TestAnalyze_CustomHistoryWindowAndNewsLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := NewMockFetcher(ctrl)
	f.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quote(t, "AAPL", 190, 188), nil)
	f.EXPECT().FetchFundamentals(gomock.Any(), "AAPL").Return(model.Fundamentals{}, nil)
	f.EXPECT().FetchNews(gomock.Any(), "AAPL", 3).Return(news(3), nil)
	f.EXPECT().FetchHistory(gomock.Any(), "AAPL", "1y", "1wk").Return(history("AAPL", 52), nil)

	agg := analysis.NewAggregator(f, chart.NewCandleRenderer(300, 200), zerolog.Nop(),
		analysis.WithHistoryWindow("1y", "1wk"), analysis.WithNewsLimit(3))
	res := agg.Analyze(context.Background(), "AAPL")
	assert.Equal(t, model.StatusFound, res.Status)
}
