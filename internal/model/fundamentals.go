package model

// Fundamentals holds company-level data. Every pointer field is optional and
// nil when the provider did not report it.
type Fundamentals struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"` // falls back to Symbol
	Sector    *string  `json:"sector,omitempty"`
	PE        *float64 `json:"pe,omitempty"`
	EPS       *float64 `json:"eps,omitempty"`
	MarketCap *float64 `json:"market_cap,omitempty"`
	Volume    *int64   `json:"volume,omitempty"`
	DayHigh   *float64 `json:"day_high,omitempty"`
	DayLow    *float64 `json:"day_low,omitempty"`
}

// DisplayName returns the company name or the symbol when none is known.
func (f Fundamentals) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Symbol
}

// MaxNewsItems caps the number of news items kept per fetch.
const MaxNewsItems = 5
