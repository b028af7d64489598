package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AlphaPulse/internal/cache"
	"AlphaPulse/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// flightTimeout bounds a coalesced provider call, which runs detached from
// the caller that started it.
const flightTimeout = 30 * time.Second

// TTLs sets how long each capability's successful responses are cached.
// A zero TTL disables caching for that capability.
type TTLs struct {
	Quote        time.Duration
	Fundamentals time.Duration
	News         time.Duration
	History      time.Duration
}

// Cached decorates a Fetcher with a TTL cache and coalesces concurrent
// identical calls. Only successful responses are cached.
type Cached struct {
	next  Fetcher
	store cache.Store
	ttl   TTLs
	log   zerolog.Logger
	group singleflight.Group
}

// NewCached wraps next.
func NewCached(next Fetcher, store cache.Store, ttl TTLs, log zerolog.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, log: log}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	key := c.key(CapQuote, symbol)
	return cachedCall(ctx, c, key, c.ttl.Quote, func(ctx context.Context) (model.Quote, error) {
		return c.next.FetchQuote(ctx, symbol)
	})
}

func (c *Cached) FetchFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	key := c.key(CapFundamentals, symbol)
	return cachedCall(ctx, c, key, c.ttl.Fundamentals, func(ctx context.Context) (model.Fundamentals, error) {
		return c.next.FetchFundamentals(ctx, symbol)
	})
}

func (c *Cached) FetchNews(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	key := c.key(CapNews, symbol, fmt.Sprint(limit))
	return cachedCall(ctx, c, key, c.ttl.News, func(ctx context.Context) ([]model.NewsItem, error) {
		return c.next.FetchNews(ctx, symbol, limit)
	})
}

func (c *Cached) FetchHistory(ctx context.Context, symbol, period, interval string) (model.Series, error) {
	key := c.key(CapHistory, symbol, period, interval)
	return cachedCall(ctx, c, key, c.ttl.History, func(ctx context.Context) (model.Series, error) {
		return c.next.FetchHistory(ctx, symbol, period, interval)
	})
}

func (c *Cached) key(cap Capability, parts ...string) string {
	k := c.next.Name() + ":" + string(cap)
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func cachedCall[T any](ctx context.Context, c *Cached, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if ttl <= 0 || c.store == nil {
		return fetch(ctx)
	}

	var hit T
	err := c.store.Get(ctx, key, &hit)
	switch {
	case err == nil:
		c.log.Debug().Str("key", key).Msg("cache hit")
		return hit, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// The flight outlives any single caller.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		val, err := fetch(fctx)
		if err != nil {
			return val, err
		}
		if err := c.store.Set(fctx, key, val, ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Shared {
			c.log.Debug().Str("key", key).Msg("coalesced provider call")
		}
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}
