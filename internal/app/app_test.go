package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AlphaPulse/internal/analysis"
	"AlphaPulse/internal/chart"
	"AlphaPulse/internal/collector"
	"AlphaPulse/internal/config"
	"AlphaPulse/internal/model"
	"AlphaPulse/internal/symbol"
	"AlphaPulse/internal/watchlist"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mutationLog struct {
	mu  sync.Mutex
	ops []string
}

func (m *mutationLog) RecordWatchlistMutation(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op+":"+outcome)
}

func newTestApp(t *testing.T, fetcher collector.Fetcher) (*App, *mutationLog) {
	t.Helper()
	store := watchlist.NewMemoryStore()
	agg := analysis.NewAggregator(fetcher, chart.NewCandleRenderer(400, 300), zerolog.Nop())
	muts := &mutationLog{}
	a := New(Options{
		Normalizer: symbol.NewNormalizer(".TW"),
		Store:      store,
		Aggregator: agg,
		Refresher:  analysis.NewRefresher(store, agg, 2, zerolog.Nop()),
		Mutations:  muts,
		Log:        zerolog.Nop(),
	})
	t.Cleanup(func() { a.Close() })
	return a, muts
}

func mockFetcher() *collector.MockFetcher {
	m := collector.NewMockFetcher(580)
	m.PrevClose = 575
	m.Unknown = map[string]bool{"ZZZZ999": true}
	m.Now = func() time.Time { return time.Date(2025, 3, 14, 13, 30, 0, 0, time.UTC) }
	return m
}

func TestApp_AddThenAnalyzeLocalCode(t *testing.T) {
	a, muts := newTestApp(t, mockFetcher())
	ctx := context.Background()

	sym, out, err := a.WatchlistAdd(ctx, "2330")
	require.NoError(t, err)
	assert.Equal(t, "2330.TW", sym)
	assert.Equal(t, watchlist.Added, out)

	entries, err := a.WatchlistList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2330.TW"}, model.Symbols(entries))

	res, err := a.Analyze(ctx, "chat-1", "2330")
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, "2330.TW", res.Symbol)
	assert.NotEmpty(t, res.RequestID)
	require.NotNil(t, res.Quote)
	assert.InDelta(t, 5.0, res.Quote.Change, 1e-9)
	require.True(t, res.Quote.PctDefined())
	assert.InDelta(t, 0.8696, *res.Quote.ChangePct, 1e-3)
	assert.True(t, res.HasChart())
	assert.Len(t, res.News, model.MaxNewsItems)
	assert.True(t, res.Watched)

	assert.Equal(t, []string{"add:ADDED"}, muts.ops)
}

func TestApp_AnalyzeReportsWatchedState(t *testing.T) {
	a, _ := newTestApp(t, mockFetcher())
	ctx := context.Background()

	res, err := a.Analyze(ctx, "chat-1", "AAPL")
	require.NoError(t, err)
	assert.False(t, res.Watched)

	_, _, err = a.ToggleCurrent(ctx, "chat-1")
	require.NoError(t, err)

	res, err = a.Analyze(ctx, "chat-1", "aapl")
	require.NoError(t, err)
	assert.True(t, res.Watched)
}

func TestApp_ChartSkipsSessionTracking(t *testing.T) {
	a, _ := newTestApp(t, mockFetcher())
	ctx := context.Background()

	sym, png, err := a.Chart(ctx, "2330")
	require.NoError(t, err)
	assert.Equal(t, "2330.TW", sym)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	_, _, err = a.Chart(ctx, "zzzz999")
	assert.ErrorIs(t, err, model.ErrNoData)

	_, _, err = a.Chart(ctx, "  ")
	assert.ErrorIs(t, err, model.ErrInvalidSymbol)

	// No session picked up a current symbol.
	_, _, err = a.ToggleCurrent(ctx, "")
	assert.ErrorIs(t, err, ErrNoCurrentSymbol)
}

func TestApp_AnalyzeUnknownIsNotFound(t *testing.T) {
	a, _ := newTestApp(t, mockFetcher())
	ctx := context.Background()

	res, err := a.Analyze(ctx, "chat-1", "zzzz999")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotFound, res.Status)
	assert.Nil(t, res.Quote)
	assert.False(t, res.HasChart())

	_, _, err = a.ToggleCurrent(ctx, "chat-1")
	assert.ErrorIs(t, err, ErrNoCurrentSymbol)
}

func TestApp_AnalyzeBlankIsInvalid(t *testing.T) {
	a, _ := newTestApp(t, mockFetcher())

	res, err := a.Analyze(context.Background(), "chat-1", "   ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvalid, res.Status)
	assert.Equal(t, model.ReasonInvalid, res.Reason)
}

func TestApp_MutationsRejectBlankInput(t *testing.T) {
	a, muts := newTestApp(t, mockFetcher())
	ctx := context.Background()

	_, _, err := a.WatchlistAdd(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidSymbol)
	_, _, err = a.WatchlistRemove(ctx, " ")
	assert.ErrorIs(t, err, model.ErrInvalidSymbol)
	_, _, err = a.WatchlistToggle(ctx, "\t")
	assert.ErrorIs(t, err, model.ErrInvalidSymbol)
	assert.Empty(t, muts.ops)
}

func TestApp_ToggleCurrentFollowsLastFoundAnalysis(t *testing.T) {
	a, _ := newTestApp(t, mockFetcher())
	ctx := context.Background()

	_, err := a.Analyze(ctx, "chat-1", "aapl")
	require.NoError(t, err)

	sym, out, err := a.ToggleCurrent(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", sym)
	assert.Equal(t, watchlist.Added, out)

	sym, out, err = a.ToggleCurrent(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", sym)
	assert.Equal(t, watchlist.Removed, out)

	// Another session has no current symbol.
	_, _, err = a.ToggleCurrent(ctx, "chat-2")
	assert.ErrorIs(t, err, ErrNoCurrentSymbol)
}

// gatedFetcher blocks quotes for one symbol until released.
type gatedFetcher struct {
	*collector.MockFetcher
	slow    string
	release chan struct{}
	entered chan struct{}
}

func (g *gatedFetcher) FetchQuote(ctx context.Context, sym string) (model.Quote, error) {
	if sym == g.slow {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return model.Quote{}, ctx.Err()
		}
	}
	return g.MockFetcher.FetchQuote(ctx, sym)
}

func TestApp_StaleAnalysisIsSuperseded(t *testing.T) {
	g := &gatedFetcher{
		MockFetcher: mockFetcher(),
		slow:        "AAPL",
		release:     make(chan struct{}),
		entered:     make(chan struct{}),
	}
	a, _ := newTestApp(t, g)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := a.Analyze(ctx, "chat-1", "AAPL")
		errc <- err
	}()
	<-g.entered

	res, err := a.Analyze(ctx, "chat-1", "2330")
	require.NoError(t, err)
	assert.Equal(t, "2330.TW", res.Symbol)
	close(g.release)

	assert.True(t, errors.Is(<-errc, analysis.ErrSuperseded))

	sym, _, err := a.ToggleCurrent(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "2330.TW", sym)
}

func TestApp_RefreshOmitsFailures(t *testing.T) {
	a, _ := newTestApp(t, mockFetcher())
	ctx := context.Background()
	for _, raw := range []string{"2330", "ZZZZ999", "AAPL"} {
		_, _, err := a.WatchlistAdd(ctx, raw)
		require.NoError(t, err)
	}

	quotes, err := a.RefreshWatchlistSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "AAPL", quotes[0].Symbol)
	assert.Equal(t, "2330.TW", quotes[1].Symbol)
}

func TestBuild_MockProviderInMemory(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DataSource.Provider = "mock"
	cfg.Database.SQLitePath = ":memory:"
	cfg.Cache.Backend = "memory"

	a, rec, err := Build(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, rec)

	_, _, err = a.WatchlistToggle(context.Background(), "0050")
	require.NoError(t, err)
	res, err := a.Analyze(context.Background(), "s", "0050")
	require.NoError(t, err)
	assert.True(t, res.Found())
}

func TestNewFetcher_UnknownProvider(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DataSource.Provider = "bloomberg"
	_, err = NewFetcher(cfg)
	assert.Error(t, err)
}
