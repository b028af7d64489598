package calculator

import (
	"errors"
	"math"

	"AlphaPulse/internal/model"
)

// Overlay periods drawn on the chart and reported in Technicals.
var OverlayPeriods = []int{5, 20, 60}

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns a rolling SMA aligned with prices. Positions before the
// first full window are NaN.
func SMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := make([]float64, len(prices))
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out, nil
}

// optionalSMA returns nil when there are fewer bars than period.
func optionalSMA(bars []model.OHLCV, period int) *float64 {
	v, err := CalculateSMA(extractCloses(bars), period)
	if err != nil {
		return nil
	}
	return &v
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
