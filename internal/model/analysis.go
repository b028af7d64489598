package model

import "time"

// Status classifies the outcome of one analysis request.
type Status string

const (
	StatusFound       Status = "FOUND"
	StatusNotFound    Status = "NOT_FOUND"
	StatusUnavailable Status = "UNAVAILABLE"
	StatusInvalid     Status = "INVALID"
)

// Facet names a best-effort component of an analysis.
type Facet string

const (
	FacetFundamentals Facet = "fundamentals"
	FacetNews         Facet = "news"
	FacetChart        Facet = "chart"
)

// User-facing reasons for a failed analysis.
const (
	ReasonNotFound    = "symbol not found"
	ReasonUnavailable = "provider unavailable"
	ReasonInvalid     = "symbol is empty"
)

// AnalysisResult aggregates every view of one symbol at one point in time.
// Absent facets are nil; Missing explains why.
type AnalysisResult struct {
	Symbol       string           `json:"symbol"`
	RequestID    string           `json:"request_id,omitempty"`
	Status       Status           `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Quote        *Quote           `json:"quote,omitempty"`
	Fundamentals *Fundamentals    `json:"fundamentals,omitempty"`
	News         []NewsItem       `json:"news,omitempty"`
	Chart        []byte           `json:"chart,omitempty"`
	Technicals   *Technicals      `json:"technicals,omitempty"`
	Missing      map[Facet]string `json:"missing,omitempty"`
	// Watched is true when the symbol is on the watchlist.
	Watched bool `json:"watched"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// Found reports whether a valid quote was obtained.
func (r *AnalysisResult) Found() bool { return r != nil && r.Status == StatusFound }

// HasChart reports whether the chart facet is present.
func (r *AnalysisResult) HasChart() bool { return len(r.Chart) > 0 }
