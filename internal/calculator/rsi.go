package calculator

import (
	"errors"

	"AlphaPulse/internal/model"
)

// RSIPeriod is the look-back, in daily bars, of the RSI shown with a chart.
const RSIPeriod = 14

// NeutralRSI is reported when the history window is too short, such as for a
// listing younger than RSIPeriod sessions.
const NeutralRSI = 50.0

// CalculateRSI returns the Wilder RSI of the closes in bars. The first
// period session-to-session moves seed the averages; every later session
// is folded in with weight 1/period.
func CalculateRSI(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	closes := extractCloses(bars)
	if len(closes) <= period {
		return NeutralRSI, nil
	}

	up, down := seedMoves(closes[:period+1])
	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		u, d := move(closes[i-1], closes[i])
		up = (up*(n-1) + u) / n
		down = (down*(n-1) + d) / n
	}

	if down == 0 {
		return 100, nil
	}
	return 100 - 100/(1+up/down), nil
}

// seedMoves averages the upward and downward moves across closes.
func seedMoves(closes []float64) (up, down float64) {
	for i := 1; i < len(closes); i++ {
		u, d := move(closes[i-1], closes[i])
		up += u
		down += d
	}
	n := float64(len(closes) - 1)
	return up / n, down / n
}

// move splits a close-to-close change into its up and down magnitudes.
func move(prev, cur float64) (up, down float64) {
	if cur > prev {
		return cur - prev, 0
	}
	return 0, prev - cur
}
