package model

import "time"

// Default history window used for the chart facet.
const (
	DefaultHistoryPeriod   = "6mo"
	DefaultHistoryInterval = "1d"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series holds an ordered price history for one symbol.
type Series struct {
	Symbol   string  `json:"symbol"`
	Period   string  `json:"period"`
	Interval string  `json:"interval"`
	Bars     []OHLCV `json:"bars"`
}

// Closes returns the close of every bar in order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Technicals summarises a history series.
type Technicals struct {
	MA5           *float64 `json:"ma5,omitempty"`
	MA20          *float64 `json:"ma20,omitempty"`
	MA60          *float64 `json:"ma60,omitempty"`
	RSI14         float64  `json:"rsi14"`
	PeriodHigh    float64  `json:"period_high"`
	PeriodLow     float64  `json:"period_low"`
	RangePosition float64  `json:"range_position"` // 0.0 ~ 1.0
}
