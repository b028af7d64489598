package chart

import (
	"image/color"
	"math"

	"AlphaPulse/internal/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// bodyShare is the fraction of a bar slot covered by a candle body.
const bodyShare = 0.6

func barColor(b model.OHLCV) color.Color {
	switch {
	case b.Close > b.Open:
		return colorUp
	case b.Close < b.Open:
		return colorDown
	}
	return colorFlat
}

// slotWidth is the canvas width of one bar slot, at least one point.
func slotWidth(trX func(float64) vg.Length) vg.Length {
	return max(trX(1)-trX(0), 1)
}

// candles is a plot.Plotter drawing one candle per bar at x = bar index.
type candles struct {
	bars   []model.OHLCV
	lo, hi float64
}

func (cs *candles) DataRange() (xmin, xmax, ymin, ymax float64) {
	return -0.5, float64(len(cs.bars)) - 0.5, cs.lo, cs.hi
}

func (cs *candles) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	half := max(slotWidth(trX)*bodyShare/2, 0.5)

	for i, b := range cs.bars {
		clr := barColor(b)
		x := trX(float64(i))
		wick := draw.LineStyle{Color: clr, Width: vg.Points(1)}
		c.StrokeLine2(wick, x, trY(b.Low), x, trY(b.High))

		top, bottom := trY(math.Max(b.Open, b.Close)), trY(math.Min(b.Open, b.Close))
		if top == bottom {
			c.StrokeLine2(wick, x-half, top, x+half, top)
			continue
		}
		c.FillPolygon(clr, []vg.Point{
			{X: x - half, Y: bottom},
			{X: x + half, Y: bottom},
			{X: x + half, Y: top},
			{X: x - half, Y: top},
		})
	}
}

// volumeBars is a plot.Plotter scaling volume into the band [base, base+band]
// of the price axis.
type volumeBars struct {
	bars       []model.OHLCV
	base, band float64
}

func (vb *volumeBars) DataRange() (xmin, xmax, ymin, ymax float64) {
	return -0.5, float64(len(vb.bars)) - 0.5, vb.base, vb.base + vb.band
}

func (vb *volumeBars) Plot(c draw.Canvas, plt *plot.Plot) {
	maxVol := 0.0
	for _, b := range vb.bars {
		maxVol = math.Max(maxVol, b.Volume)
	}
	if maxVol <= 0 {
		return
	}
	trX, trY := plt.Transforms(&c)
	half := max(slotWidth(trX)*bodyShare/2, 0.5)
	y0 := trY(vb.base)

	for i, b := range vb.bars {
		if b.Volume <= 0 {
			continue
		}
		x := trX(float64(i))
		y1 := trY(vb.base + b.Volume/maxVol*vb.band)
		c.FillPolygon(barColor(b), []vg.Point{
			{X: x - half, Y: y0},
			{X: x + half, Y: y0},
			{X: x + half, Y: y1},
			{X: x - half, Y: y1},
		})
	}
}

// priceTicks drops the default ticks that fall inside the volume band.
type priceTicks struct{ floor float64 }

func (t priceTicks) Ticks(lo, hi float64) []plot.Tick {
	var out []plot.Tick
	for _, tk := range (plot.DefaultTicks{}).Ticks(lo, hi) {
		if tk.Value >= t.floor {
			out = append(out, tk)
		}
	}
	return out
}

// dateTicks labels about six evenly spaced bars with their session date.
func dateTicks(bars []model.OHLCV) plot.Ticker {
	return plot.TickerFunc(func(lo, hi float64) []plot.Tick {
		step := max(len(bars)/6, 1)
		var out []plot.Tick
		for i := 0; i < len(bars); i += step {
			out = append(out, plot.Tick{Value: float64(i), Label: bars[i].Time.Format("01/02")})
		}
		return out
	})
}
