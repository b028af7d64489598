// Package chart turns a price series into an encoded candlestick image.
package chart

import (
	"fmt"

	"AlphaPulse/internal/model"
)

// ErrEmptySeries is returned for a series with no bars. It matches
// model.ErrRenderFailure under errors.Is.
var ErrEmptySeries = fmt.Errorf("chart: empty series: %w", model.ErrRenderFailure)

// Renderer is a pure function from a series to image bytes.
type Renderer interface {
	Render(series model.Series) ([]byte, error)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(series model.Series) ([]byte, error)

func (f RenderFunc) Render(series model.Series) ([]byte, error) { return f(series) }
