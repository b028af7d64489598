// Package watchlist persists the user's tracked symbols.
package watchlist

import (
	"context"

	"AlphaPulse/internal/model"
)

// Outcome reports what a mutation did. None of these values is an error.
type Outcome string

const (
	Added          Outcome = "ADDED"
	AlreadyPresent Outcome = "ALREADY_PRESENT"
	Removed        Outcome = "REMOVED"
	NotPresent     Outcome = "NOT_PRESENT"
)

// Store is a durable, deduplicated set of canonical symbols.
// Implementations are safe for concurrent use; mutations on the same symbol
// are linearizable. Storage faults wrap model.ErrStorage.
type Store interface {
	Add(ctx context.Context, symbol string) (Outcome, error)
	Remove(ctx context.Context, symbol string) (Outcome, error)
	Toggle(ctx context.Context, symbol string) (Outcome, error)
	Contains(ctx context.Context, symbol string) (bool, error)
	// List returns entries newest-added first.
	List(ctx context.Context) ([]model.WatchlistEntry, error)
	Close() error
}
