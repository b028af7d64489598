package model

import "errors"

// Error taxonomy shared by every layer. Callers wrap these with fmt.Errorf("...: %w")
// and classify with errors.Is.
var (
	// ErrInvalidSymbol is returned for empty or malformed user input.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrProviderUnavailable covers network, HTTP and decode faults of a provider call.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNoData means the provider answered but has nothing tradable for the symbol.
	ErrNoData = errors.New("no data")
	// ErrRenderFailure means a chart could not be produced from a series.
	ErrRenderFailure = errors.New("render failure")
	// ErrStorage is a watchlist persistence fault.
	ErrStorage = errors.New("storage error")
)
