package collector

import (
	"context"
	"errors"
	"time"

	"AlphaPulse/internal/model"
)

// Outcome labels for provider calls.
const (
	OutcomeOK          = "ok"
	OutcomeNoData      = "no_data"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
)

// FetchObserver receives one event per provider call.
type FetchObserver interface {
	ObserveFetch(provider, capability, outcome string, elapsed time.Duration)
}

// Classify maps a provider error to an outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, model.ErrNoData):
		return OutcomeNoData
	default:
		return OutcomeUnavailable
	}
}

// Instrumented reports the outcome and latency of every call to obs.
type Instrumented struct {
	next Fetcher
	obs  FetchObserver
}

func NewInstrumented(next Fetcher, obs FetchObserver) *Instrumented {
	return &Instrumented{next: next, obs: obs}
}

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	start := time.Now()
	q, err := i.next.FetchQuote(ctx, symbol)
	i.observe(CapQuote, err, start)
	return q, err
}

func (i *Instrumented) FetchFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	start := time.Now()
	f, err := i.next.FetchFundamentals(ctx, symbol)
	i.observe(CapFundamentals, err, start)
	return f, err
}

func (i *Instrumented) FetchNews(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	start := time.Now()
	n, err := i.next.FetchNews(ctx, symbol, limit)
	i.observe(CapNews, err, start)
	return n, err
}

func (i *Instrumented) FetchHistory(ctx context.Context, symbol, period, interval string) (model.Series, error) {
	start := time.Now()
	s, err := i.next.FetchHistory(ctx, symbol, period, interval)
	i.observe(CapHistory, err, start)
	return s, err
}

func (i *Instrumented) observe(cap Capability, err error, start time.Time) {
	i.obs.ObserveFetch(i.next.Name(), string(cap), Classify(err), time.Since(start))
}
