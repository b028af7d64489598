//go:generate mockgen -destination=mock_fetcher_test.go -package=analysis_test AlphaPulse/internal/collector Fetcher

// Package analysis merges independently failing provider calls into one
// result per symbol and builds watchlist summaries.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AlphaPulse/internal/calculator"
	"AlphaPulse/internal/chart"
	"AlphaPulse/internal/collector"
	"AlphaPulse/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver reports every analysis outcome to obs.
func WithObserver(obs Observer) Option {
	return func(a *Aggregator) {
		if obs != nil {
			a.obs = obs
		}
	}
}

// WithHistoryWindow overrides the chart history period and interval.
func WithHistoryWindow(period, interval string) Option {
	return func(a *Aggregator) {
		if period != "" {
			a.period = period
		}
		if interval != "" {
			a.interval = interval
		}
	}
}

// WithNewsLimit caps news items per analysis; values above model.MaxNewsItems are clamped.
func WithNewsLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 && n <= model.MaxNewsItems {
			a.newsLimit = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// Aggregator runs the quote step and, on a valid quote, the three
// best-effort facets for one canonical symbol.
type Aggregator struct {
	fetcher   collector.Fetcher
	renderer  chart.Renderer
	log       zerolog.Logger
	obs       Observer
	period    string
	interval  string
	newsLimit int
	now       func() time.Time
}

func NewAggregator(fetcher collector.Fetcher, renderer chart.Renderer, log zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher:   fetcher,
		renderer:  renderer,
		log:       log,
		obs:       nopObserver{},
		period:    model.DefaultHistoryPeriod,
		interval:  model.DefaultHistoryInterval,
		newsLimit: model.MaxNewsItems,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Quote runs only the mandatory quote step and classifies its outcome.
// The error is nil exactly when status is StatusFound.
func (a *Aggregator) Quote(ctx context.Context, symbol string) (model.Quote, model.Status, error) {
	q, err := a.fetcher.FetchQuote(ctx, symbol)
	switch {
	case err == nil && q.Valid():
		return q, model.StatusFound, nil
	case err == nil:
		return model.Quote{}, model.StatusNotFound, fmt.Errorf("quote %s: non-positive price: %w", symbol, model.ErrNoData)
	case errors.Is(err, model.ErrNoData):
		return model.Quote{}, model.StatusNotFound, err
	default:
		return model.Quote{}, model.StatusUnavailable, err
	}
}

// Analyze never fails; every problem is expressed through the result's
// Status, Reason and Missing fields.
func (a *Aggregator) Analyze(ctx context.Context, symbol string) (res model.AnalysisResult) {
	res = model.AnalysisResult{Symbol: symbol, StartedAt: a.now()}
	log := a.log.With().Str("symbol", symbol).Logger()
	defer func() {
		res.FinishedAt = a.now()
		a.obs.RecordAnalysis(string(res.Status), res.FinishedAt.Sub(res.StartedAt))
	}()

	q, status, err := a.Quote(ctx, symbol)
	if err != nil {
		res.Status = status
		res.Reason = model.ReasonUnavailable
		if status == model.StatusNotFound {
			res.Reason = model.ReasonNotFound
		}
		log.Info().Err(err).Str("status", string(status)).Msg("quote step failed, skipping facets")
		return res
	}
	res.Status = model.StatusFound
	res.Quote = &q

	var (
		g        errgroup.Group
		fund     model.Fundamentals
		fundErr  error
		news     []model.NewsItem
		newsErr  error
		png      []byte
		chartErr error
		tech     *model.Technicals
	)
	g.Go(func() error {
		fund, fundErr = a.fetcher.FetchFundamentals(ctx, symbol)
		return nil
	})
	g.Go(func() error {
		news, newsErr = a.fetcher.FetchNews(ctx, symbol, a.newsLimit)
		return nil
	})
	g.Go(func() error {
		png, tech, chartErr = a.chart(ctx, symbol)
		return nil
	})
	_ = g.Wait()

	missing := make(map[model.Facet]string)
	if fundErr != nil {
		missing[model.FacetFundamentals] = fundErr.Error()
		log.Warn().Err(fundErr).Str("facet", string(model.FacetFundamentals)).Msg("facet unavailable")
	} else {
		if fund.Name == "" {
			fund.Name = symbol
		}
		res.Fundamentals = &fund
	}
	if newsErr != nil {
		missing[model.FacetNews] = newsErr.Error()
		log.Warn().Err(newsErr).Str("facet", string(model.FacetNews)).Msg("facet unavailable")
	} else {
		res.News = model.CapNews(news)
	}
	if chartErr != nil {
		missing[model.FacetChart] = chartErr.Error()
		log.Warn().Err(chartErr).Str("facet", string(model.FacetChart)).Msg("facet unavailable")
	} else {
		res.Chart = png
	}
	res.Technicals = tech
	if len(missing) > 0 {
		res.Missing = missing
	}
	return res
}

// Chart fetches the configured history window of symbol and renders it.
// It bypasses the quote and facet fan-out of Analyze.
func (a *Aggregator) Chart(ctx context.Context, symbol string) ([]byte, error) {
	png, _, err := a.chart(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	return png, nil
}

// chart fetches history, derives technicals and renders. Technicals survive
// a render failure; both are absent when history is.
func (a *Aggregator) chart(ctx context.Context, symbol string) ([]byte, *model.Technicals, error) {
	series, err := a.fetcher.FetchHistory(ctx, symbol, a.period, a.interval)
	if err != nil {
		return nil, nil, err
	}

	var tech *model.Technicals
	if t, err := calculator.ComputeTechnicals(series); err == nil {
		tech = &t
	}

	png, err := a.renderer.Render(series)
	if err != nil {
		return nil, tech, err
	}
	return png, tech, nil
}
