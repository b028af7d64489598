// Package app is the presentation-facing facade shared by the Telegram bot,
// the HTTP API and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"AlphaPulse/internal/analysis"
	"AlphaPulse/internal/model"
	"AlphaPulse/internal/symbol"
	"AlphaPulse/internal/watchlist"

	"github.com/rs/zerolog"
)

// ErrNoCurrentSymbol is returned by ToggleCurrent when the session's last
// analysis did not find a symbol.
var ErrNoCurrentSymbol = errors.New("no analysed symbol to toggle")

// MutationObserver counts watchlist mutations.
type MutationObserver interface {
	RecordWatchlistMutation(op, outcome string)
}

type nopMutations struct{}

func (nopMutations) RecordWatchlistMutation(string, string) {}

// Options wires an App.
type Options struct {
	Normalizer symbol.Normalizer
	Store      watchlist.Store
	Aggregator *analysis.Aggregator
	Refresher  *analysis.Refresher
	Tracker    *analysis.Tracker
	Mutations  MutationObserver
	Log        zerolog.Logger
	// Closers run on Close after the store, in order.
	Closers []func() error
}

// App exposes normalize, watchlist, analysis and refresh operations.
type App struct {
	norm      symbol.Normalizer
	store     watchlist.Store
	agg       *analysis.Aggregator
	refresher *analysis.Refresher
	tracker   *analysis.Tracker
	mutations MutationObserver
	log       zerolog.Logger
	closers   []func() error
}

func New(opts Options) *App {
	a := &App{
		norm:      opts.Normalizer,
		store:     opts.Store,
		agg:       opts.Aggregator,
		refresher: opts.Refresher,
		tracker:   opts.Tracker,
		mutations: opts.Mutations,
		log:       opts.Log,
		closers:   opts.Closers,
	}
	if a.norm.Suffix == "" {
		a.norm = symbol.NewNormalizer("")
	}
	if a.tracker == nil {
		a.tracker = analysis.NewTracker()
	}
	if a.mutations == nil {
		a.mutations = nopMutations{}
	}
	return a
}

// Normalize maps raw input to a canonical symbol.
func (a *App) Normalize(raw string) (string, error) {
	return a.norm.Normalize(raw)
}

// WatchlistAdd normalizes raw and adds it.
func (a *App) WatchlistAdd(ctx context.Context, raw string) (string, watchlist.Outcome, error) {
	return a.mutate(ctx, "add", raw, a.store.Add)
}

// WatchlistRemove normalizes raw and removes it.
func (a *App) WatchlistRemove(ctx context.Context, raw string) (string, watchlist.Outcome, error) {
	return a.mutate(ctx, "remove", raw, a.store.Remove)
}

// WatchlistToggle normalizes raw and toggles it.
func (a *App) WatchlistToggle(ctx context.Context, raw string) (string, watchlist.Outcome, error) {
	return a.mutate(ctx, "toggle", raw, a.store.Toggle)
}

// WatchlistContains reports whether raw (normalized) is tracked.
func (a *App) WatchlistContains(ctx context.Context, raw string) (string, bool, error) {
	sym, err := a.norm.Normalize(raw)
	if err != nil {
		return "", false, err
	}
	ok, err := a.store.Contains(ctx, sym)
	return sym, ok, err
}

// WatchlistList returns a snapshot, newest first.
func (a *App) WatchlistList(ctx context.Context) ([]model.WatchlistEntry, error) {
	return a.store.List(ctx)
}

func (a *App) mutate(ctx context.Context, op, raw string, fn func(context.Context, string) (watchlist.Outcome, error)) (string, watchlist.Outcome, error) {
	sym, err := a.norm.Normalize(raw)
	if err != nil {
		return "", "", err
	}
	out, err := fn(ctx, sym)
	if err != nil {
		a.mutations.RecordWatchlistMutation(op, "error")
		a.log.Error().Err(err).Str("op", op).Str("symbol", sym).Msg("watchlist mutation failed")
		return sym, "", err
	}
	a.mutations.RecordWatchlistMutation(op, string(out))
	a.log.Info().Str("op", op).Str("symbol", sym).Str("outcome", string(out)).Msg("watchlist mutated")
	return sym, out, nil
}

// Analyze normalizes raw and aggregates every view of it for session.
// Invalid input yields a StatusInvalid result with a nil error. If a newer
// request for the same session starts first, the result is returned along
// with analysis.ErrSuperseded and must not be shown.
func (a *App) Analyze(ctx context.Context, session, raw string) (model.AnalysisResult, error) {
	ctx, token := a.tracker.Begin(ctx, session)

	var res model.AnalysisResult
	sym, err := a.norm.Normalize(raw)
	if err != nil {
		res = model.AnalysisResult{Symbol: sym, Status: model.StatusInvalid, Reason: model.ReasonInvalid}
	} else {
		res = a.agg.Analyze(ctx, sym)
	}
	res.RequestID = token
	if res.Found() && ctx.Err() == nil {
		watched, err := a.store.Contains(ctx, res.Symbol)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", res.Symbol).Msg("watchlist lookup failed")
		}
		res.Watched = watched
	}

	if !a.tracker.Finish(session, token, &res) {
		a.log.Debug().Str("session", session).Str("symbol", res.Symbol).Str("request", token).
			Msg("dropping superseded analysis")
		return res, analysis.ErrSuperseded
	}
	return res, nil
}

// Chart normalizes raw and renders its price history. It takes no part in
// session tracking.
func (a *App) Chart(ctx context.Context, raw string) (string, []byte, error) {
	sym, err := a.norm.Normalize(raw)
	if err != nil {
		return "", nil, err
	}
	png, err := a.agg.Chart(ctx, sym)
	if err != nil {
		return sym, nil, err
	}
	return sym, png, nil
}

// ToggleCurrent toggles the symbol of the session's last Found analysis.
func (a *App) ToggleCurrent(ctx context.Context, session string) (string, watchlist.Outcome, error) {
	sym, ok := a.tracker.Current(session)
	if !ok {
		return "", "", ErrNoCurrentSymbol
	}
	return a.mutate(ctx, "toggle", sym, a.store.Toggle)
}

// RefreshWatchlistSummaries quotes every tracked symbol, omitting failures.
func (a *App) RefreshWatchlistSummaries(ctx context.Context) ([]model.Quote, error) {
	return a.refresher.Refresh(ctx)
}

// Close releases the store and any other resources.
func (a *App) Close() error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
