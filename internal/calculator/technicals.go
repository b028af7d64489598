package calculator

import (
	"errors"

	"AlphaPulse/internal/model"
)

// ComputeTechnicals derives moving averages, RSI and the period range from a
// history series. Moving averages longer than the series are left nil.
func ComputeTechnicals(series model.Series) (model.Technicals, error) {
	bars := series.Bars
	if len(bars) == 0 {
		return model.Technicals{}, errors.New("empty series")
	}

	rsi, err := CalculateRSI(bars, RSIPeriod)
	if err != nil {
		return model.Technicals{}, err
	}
	high, low, err := PeriodRange(bars)
	if err != nil {
		return model.Technicals{}, err
	}
	pos, err := RangePosition(bars[len(bars)-1].Close, high, low)
	if err != nil {
		return model.Technicals{}, err
	}

	return model.Technicals{
		MA5:           optionalSMA(bars, 5),
		MA20:          optionalSMA(bars, 20),
		MA60:          optionalSMA(bars, 60),
		RSI14:         rsi,
		PeriodHigh:    high,
		PeriodLow:     low,
		RangePosition: pos,
	}, nil
}
