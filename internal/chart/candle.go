package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"AlphaPulse/internal/calculator"
	"AlphaPulse/internal/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Palette for the dark theme. Rising candles are red and falling candles
// green, following the Taiwan market convention.
var (
	colorBackground = color.RGBA{0x0f, 0x17, 0x2a, 0xff}
	colorGrid       = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	colorText       = color.RGBA{0xcb, 0xd5, 0xe1, 0xff}
	colorUp         = color.RGBA{0xef, 0x44, 0x44, 0xff}
	colorDown       = color.RGBA{0x22, 0xc5, 0x5e, 0xff}
	colorFlat       = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	maColors        = []color.RGBA{
		{0xfa, 0xcc, 0x15, 0xff},
		{0x38, 0xbd, 0xf8, 0xff},
		{0xa7, 0x8b, 0xfa, 0xff},
	}
)

// One point per pixel.
const pixelDPI = 72

// volumeShare is the fraction of the plot height given to volume bars.
const volumeShare = 0.25

// CandleRenderer plots candles, volume bars and moving-average overlays
// with gonum/plot and encodes the result as PNG.
type CandleRenderer struct {
	Width     int
	Height    int
	Padding   int
	MAPeriods []int
}

// NewCandleRenderer returns a renderer with the default MA overlays.
func NewCandleRenderer(width, height int) *CandleRenderer {
	if width <= 0 {
		width = 1000
	}
	if height <= 0 {
		height = 600
	}
	return &CandleRenderer{
		Width:     width,
		Height:    height,
		Padding:   16,
		MAPeriods: calculator.OverlayPeriods,
	}
}

// Render implements Renderer.
func (r *CandleRenderer) Render(series model.Series) (out []byte, err error) {
	bars := series.Bars
	if len(bars) == 0 {
		return nil, ErrEmptySeries
	}
	for i, b := range bars {
		if !finite(b.Open, b.High, b.Low, b.Close, b.Volume) {
			return nil, fmt.Errorf("chart %s: bar %d has non-finite values: %w", series.Symbol, i, model.ErrRenderFailure)
		}
	}
	plotW := r.Width - 2*r.Padding
	plotH := r.Height - 2*r.Padding
	if plotW < len(bars) || plotH < 40 {
		return nil, fmt.Errorf("chart %s: %dx%d too small for %d bars: %w",
			series.Symbol, r.Width, r.Height, len(bars), model.ErrRenderFailure)
	}

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("chart %s: plot: %v: %w", series.Symbol, p, model.ErrRenderFailure)
		}
	}()

	p, err := r.plot(series)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %v: %w", series.Symbol, err, model.ErrRenderFailure)
	}

	img := vgimg.NewWith(
		vgimg.UseWH(vg.Length(r.Width), vg.Length(r.Height)),
		vgimg.UseDPI(pixelDPI),
		vgimg.UseBackgroundColor(colorBackground),
	)
	pad := vg.Length(r.Padding)
	p.Draw(draw.Crop(draw.New(img), pad, -pad, pad, -pad))

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart %s: encode: %v: %w", series.Symbol, err, model.ErrRenderFailure)
	}
	return buf.Bytes(), nil
}

// plot lays out one price axis. Volume bars occupy a band below the lowest
// price and carry no y ticks of their own.
func (r *CandleRenderer) plot(series model.Series) (*plot.Plot, error) {
	bars := series.Bars
	overlays := r.overlays(series.Closes())
	lo, hi := priceBounds(bars, overlays)
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	band := (hi - lo) * volumeShare / (1 - volumeShare)
	base := lo - band

	p := plot.New()
	p.BackgroundColor = colorBackground
	p.Title.Text = series.Symbol
	p.Title.TextStyle.Color = colorText
	for _, ax := range []*plot.Axis{&p.X, &p.Y} {
		ax.LineStyle.Color = colorGrid
		ax.Tick.LineStyle.Color = colorGrid
		ax.Tick.Label.Color = colorText
	}
	p.X.Tick.Marker = dateTicks(bars)
	p.Y.Tick.Marker = priceTicks{floor: lo}

	grid := plotter.NewGrid()
	grid.Vertical.Color = colorGrid
	grid.Horizontal.Color = colorGrid
	p.Add(grid)

	p.Add(&volumeBars{bars: bars, base: base, band: band})
	p.Add(&candles{bars: bars, lo: lo, hi: hi})

	for k, line := range overlays {
		var xys plotter.XYs
		for i, v := range line {
			if !math.IsNaN(v) {
				xys = append(xys, plotter.XY{X: float64(i), Y: v})
			}
		}
		if len(xys) < 2 {
			continue
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = maColors[k%len(maColors)]
		l.LineStyle.Width = vg.Points(1.2)
		p.Add(l)
	}

	p.X.Min, p.X.Max = -0.5, float64(len(bars))-0.5
	p.Y.Min, p.Y.Max = base, hi
	return p, nil
}

// overlays returns one aligned SMA line per configured period. Periods longer
// than the series are skipped.
func (r *CandleRenderer) overlays(closes []float64) [][]float64 {
	var out [][]float64
	for _, p := range r.MAPeriods {
		if p <= 0 || p > len(closes) {
			continue
		}
		line, err := calculator.SMASeries(closes, p)
		if err != nil {
			continue
		}
		out = append(out, line)
	}
	return out
}

func priceBounds(bars []model.OHLCV, overlays [][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	for _, line := range overlays {
		for _, v := range line {
			if !math.IsNaN(v) {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
	}
	return lo, hi
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
