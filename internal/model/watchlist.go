package model

import "time"

// WatchlistEntry is one tracked symbol.
type WatchlistEntry struct {
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"added_at"`
}

// Symbols extracts the symbols of entries, keeping order.
func Symbols(entries []WatchlistEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Symbol
	}
	return out
}
