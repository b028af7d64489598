package analysis

import (
	"context"
	"fmt"
	"time"

	"AlphaPulse/internal/model"
	"AlphaPulse/internal/watchlist"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultRefreshWorkers = 4

// Refresher builds the watchlist summary using the quote step only.
type Refresher struct {
	store   watchlist.Store
	agg     *Aggregator
	workers int
	log     zerolog.Logger
	obs     Observer
}

// NewRefresher returns a Refresher issuing at most workers concurrent quote calls.
func NewRefresher(store watchlist.Store, agg *Aggregator, workers int, log zerolog.Logger) *Refresher {
	if workers <= 0 {
		workers = defaultRefreshWorkers
	}
	return &Refresher{store: store, agg: agg, workers: workers, log: log, obs: agg.obs}
}

// Refresh returns one quote per watchlist entry in list order (newest first).
// Entries whose quote fails are omitted from the result but stay in the store.
// A storage failure is returned.
func (r *Refresher) Refresh(ctx context.Context) ([]model.Quote, error) {
	start := time.Now()
	entries, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh watchlist: %w", err)
	}

	slots := make([]*model.Quote, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			q, status, err := r.agg.Quote(ctx, e.Symbol)
			if err != nil {
				r.log.Warn().Err(err).
					Str("symbol", e.Symbol).
					Str("status", string(status)).
					Msg("omitting symbol from watchlist summary")
				return nil
			}
			slots[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]model.Quote, 0, len(entries))
	for _, q := range slots {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}

	omitted := len(entries) - len(quotes)
	r.obs.RecordRefresh(len(entries), omitted, time.Since(start))
	r.log.Info().Int("total", len(entries)).Int("omitted", omitted).Msg("watchlist refreshed")
	return quotes, nil
}
