// Package chart renders price history, decomposition and forecast charts as
// PNG images in memory.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/sells-group/farecast/internal/analysis"
	"github.com/sells-group/farecast/internal/model"
)

// Kind names a chart.
type Kind string

const (
	KindHistory       Kind = "history"
	KindDecomposition Kind = "decomposition"
	KindForecast      Kind = "forecast"
)

// Chart is a rendered image.
type Chart struct {
	Kind  Kind
	Title string
	PNG   []byte
}

// Filename returns a stable file name for the chart, e.g. LED_MOW_history.png.
func (c *Chart) Filename(q model.RouteQuery) string {
	return q.Origin + "_" + q.Destination + "_" + string(c.Kind) + ".png"
}

var (
	width  = 10 * vg.Inch
	height = 5 * vg.Inch

	observedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	forecastColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// History plots the minimum price per departure date. currency labels the
// price axis.
func History(q model.RouteQuery, series model.PriceSeries, currency string) (*Chart, error) {
	if series.Len() == 0 {
		return nil, eris.New("chart: empty series")
	}
	title := "Minimum price, " + q.String()

	p := newPlot(title, "Departure date", priceLabel(currency))
	lp, err := linePoints(series.Dates(), series.Prices(), observedColor)
	if err != nil {
		return nil, err
	}
	p.Add(lp...)
	p.Legend.Add("min price", lp[0].(*plotter.Line))

	png, err := render(p, width, height)
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: KindHistory, Title: title, PNG: png}, nil
}

// Decomposition stacks observed, trend, seasonal and residual panels.
func Decomposition(q model.RouteQuery, d *analysis.Decomposition) (*Chart, error) {
	if d == nil || len(d.Dates) == 0 {
		return nil, eris.New("chart: empty decomposition")
	}
	title := "Seasonal decomposition, " + q.String()

	panels := []struct {
		label  string
		values []float64
	}{
		{"Observed", d.Observed},
		{"Trend", d.Trend},
		{"Seasonal", d.Seasonal},
		{"Residual", d.Resid},
	}

	rows := make([][]*plot.Plot, len(panels))
	for i, panel := range panels {
		p := newPlot("", "", panel.label)
		if i == 0 {
			p.Title.Text = title
		}
		if i == len(panels)-1 {
			p.X.Label.Text = "Departure date"
		}
		l, err := line(d.Dates, panel.values, observedColor)
		if err != nil {
			return nil, eris.Wrapf(err, "chart: %s panel", panel.label)
		}
		if l != nil {
			p.Add(l)
		}
		rows[i] = []*plot.Plot{p}
	}

	img := vgimg.New(width, 2*height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      2 * vg.Millimeter,
		PadTop:    2 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  2 * vg.Millimeter,
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, eris.Wrap(err, "chart: encode decomposition")
	}
	return &Chart{Kind: KindDecomposition, Title: title, PNG: buf.Bytes()}, nil
}

// Forecast plots the observed series followed by the predicted prices.
func Forecast(q model.RouteQuery, series model.PriceSeries, fc *analysis.Forecast, currency string) (*Chart, error) {
	if series.Len() == 0 || fc == nil || len(fc.Points) == 0 {
		return nil, eris.New("chart: nothing to forecast")
	}
	title := fmt.Sprintf("%d-day price forecast, %s", len(fc.Points), q.String())

	p := newPlot(title, "Departure date", priceLabel(currency))
	observed, err := linePoints(series.Dates(), series.Prices(), observedColor)
	if err != nil {
		return nil, err
	}
	p.Add(observed...)

	dates := make([]time.Time, len(fc.Points))
	prices := make([]float64, len(fc.Points))
	for i, pt := range fc.Points {
		dates[i] = pt.Date
		prices[i] = pt.PredictedPrice
	}
	predicted, err := line(dates, prices, forecastColor)
	if err != nil {
		return nil, err
	}
	if predicted == nil {
		return nil, eris.New("chart: forecast has no finite values")
	}
	predicted.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(predicted)

	p.Legend.Add("observed", observed[0].(*plotter.Line))
	p.Legend.Add("forecast", predicted)

	png, err := render(p, width, height)
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: KindForecast, Title: title, PNG: png}, nil
}

func priceLabel(currency string) string {
	if currency == "" {
		return "Price"
	}
	return "Price, " + strings.ToUpper(currency)
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: model.DateLayout}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

// xys pairs dates with values, skipping NaN values which plotter rejects.
func xys(dates []time.Time, values []float64) plotter.XYs {
	out := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, plotter.XY{X: float64(dates[i].Unix()), Y: v})
	}
	return out
}

// line returns nil when every value is NaN.
func line(dates []time.Time, values []float64, c color.Color) (*plotter.Line, error) {
	pts := xys(dates, values)
	if len(pts) == 0 {
		return nil, nil
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, eris.Wrap(err, "chart: build line")
	}
	l.Color = c
	l.Width = vg.Points(1.5)
	return l, nil
}

func linePoints(dates []time.Time, values []float64, c color.Color) ([]plot.Plotter, error) {
	pts := xys(dates, values)
	l, s, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, eris.Wrap(err, "chart: build line points")
	}
	l.Color = c
	l.Width = vg.Points(1.5)
	s.Color = c
	s.Shape = draw.CircleGlyph{}
	s.Radius = vg.Points(2)
	return []plot.Plotter{l, s}, nil
}

func render(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, eris.Wrap(err, "chart: create png writer")
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, eris.Wrap(err, "chart: encode png")
	}
	return buf.Bytes(), nil
}
