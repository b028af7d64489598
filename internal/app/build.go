package app

import (
	"fmt"
	"os"
	"path/filepath"

	"AlphaPulse/internal/analysis"
	"AlphaPulse/internal/cache"
	"AlphaPulse/internal/chart"
	"AlphaPulse/internal/collector"
	"AlphaPulse/internal/config"
	"AlphaPulse/internal/metrics"
	"AlphaPulse/internal/symbol"
	"AlphaPulse/internal/watchlist"

	"github.com/rs/zerolog"
)

// Build assembles an App and its metrics recorder from cfg.
func Build(cfg *config.Config, log zerolog.Logger) (*App, *metrics.Recorder, error) {
	rec := metrics.New()

	store, err := openStore(cfg.Database.SQLitePath, log)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := NewFetcher(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	log.Info().Str("provider", fetcher.Name()).Msg("data source selected")
	fetcher = collector.NewInstrumented(fetcher, rec)

	var closers []func() error
	cacheStore, err := openCache(cfg, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if cacheStore != nil {
		closers = append(closers, cacheStore.Close)
		fetcher = collector.NewCached(fetcher, cacheStore, collector.TTLs{
			Quote:        cfg.Cache.QuoteTTL,
			Fundamentals: cfg.Cache.FundamentalsTTL,
			News:         cfg.Cache.NewsTTL,
			History:      cfg.Cache.HistoryTTL,
		}, log.With().Str("component", "cache").Logger())
	}

	renderer := chart.NewCandleRenderer(cfg.Chart.Width, cfg.Chart.Height)
	agg := analysis.NewAggregator(fetcher, renderer, log.With().Str("component", "aggregator").Logger(),
		analysis.WithObserver(rec),
		analysis.WithHistoryWindow(cfg.Market.HistoryPeriod, cfg.Market.HistoryInterval),
		analysis.WithNewsLimit(cfg.Market.NewsLimit),
	)
	refresher := analysis.NewRefresher(store, agg, cfg.Market.RefreshWorkers,
		log.With().Str("component", "refresher").Logger())

	a := New(Options{
		Normalizer: symbol.NewNormalizer(cfg.Market.DefaultSuffix),
		Store:      store,
		Aggregator: agg,
		Refresher:  refresher,
		Tracker: analysis.NewTracker(
			analysis.WithSessionTTL(cfg.Market.SessionTTL),
			analysis.WithMaxSessions(cfg.Market.MaxSessions),
		),
		Mutations:  rec,
		Log:        log.With().Str("component", "app").Logger(),
		Closers:    closers,
	})
	return a, rec, nil
}

// NewFetcher selects the provider named in cfg.
func NewFetcher(cfg *config.Config) (collector.Fetcher, error) {
	switch cfg.DataSource.Provider {
	case "", "yahoo":
		return collector.NewYahooFetcher(cfg.DataSource.BaseURL, cfg.Proxy, cfg.DataSource.Timeout), nil
	case "vstrader":
		return collector.NewVsTraderFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.Timeout), nil
	case "mock":
		return collector.NewMockFetcher(100), nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.DataSource.Provider)
	}
}

func openStore(path string, log zerolog.Logger) (watchlist.Store, error) {
	if path == "" {
		log.Warn().Msg("no sqlite path configured, watchlist will not persist")
		return watchlist.NewMemoryStore(), nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return watchlist.NewSQLiteStore(path, log.With().Str("component", "watchlist").Logger())
}

func openCache(cfg *config.Config, log zerolog.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "redis":
		r := cfg.Cache.Redis
		store, err := cache.NewRedisStore(cache.RedisOptions{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			PoolSize: r.PoolSize,
			Prefix:   r.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		log.Info().Str("addr", r.Addr).Msg("redis cache connected")
		return store, nil
	default:
		return cache.NewMemoryStore(cfg.Cache.MaxItems), nil
	}
}
