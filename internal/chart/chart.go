// Package chart renders price and forecast charts as PNG images.
package chart

import (
	"bytes"
	"image/color"
	"math"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"trendcast-api/internal/forecast"
	"trendcast-api/internal/frame"
	"trendcast-api/pkg/errors"
)

const dateFormat = "2006-01-02"

var (
	Width  = 10 * vg.Inch
	Height = 5 * vg.Inch

	openColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	closeColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	observedColor = color.RGBA{A: 255}
	yhatColor     = color.RGBA{R: 0, G: 114, B: 178, A: 255}
	bandColor     = color.RGBA{R: 0, G: 114, B: 178, A: 120}
)

// RawPrices plots Open and Close over time.
func RawPrices(table *frame.PriceTable, ticker string) ([]byte, error) {
	if table == nil || table.Empty() {
		return nil, errors.Newf(errors.ErrCodeEmptyData, "no prices to chart for %s", ticker)
	}

	p := newTimePlot("Price history for "+ticker, "Price")
	for _, series := range []struct {
		field string
		color color.Color
	}{
		{"Open", openColor},
		{"Close", closeColor},
	} {
		vals, _ := table.Column(series.field)
		line, err := plotter.NewLine(timeXYs(table.Dates, vals))
		if err != nil {
			return nil, err
		}
		line.Color = series.color
		p.Add(line)
		p.Legend.Add(series.field, line)
	}

	return render(p, Width, Height)
}

// Forecast plots the observed points, yhat and the uncertainty interval.
func Forecast(in *forecast.Input, fc *forecast.Forecast, ticker string) ([]byte, error) {
	if fc == nil || fc.Len() == 0 {
		return nil, errors.Newf(errors.ErrCodeEmptyData, "no forecast to chart for %s", ticker)
	}

	p := newTimePlot("Forecast for "+ticker, "Price")

	ds := make([]time.Time, fc.Len())
	yhat := make([]float64, fc.Len())
	lower := make([]float64, fc.Len())
	upper := make([]float64, fc.Len())
	for i, pt := range fc.Points {
		ds[i], yhat[i], lower[i], upper[i] = pt.DS, pt.YHat, pt.YHatLower, pt.YHatUpper
	}

	for _, bound := range [][]float64{lower, upper} {
		line, err := plotter.NewLine(timeXYs(ds, bound))
		if err != nil {
			return nil, err
		}
		line.Color = bandColor
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
	}

	line, err := plotter.NewLine(timeXYs(ds, yhat))
	if err != nil {
		return nil, err
	}
	line.Color = yhatColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("yhat", line)

	if in != nil && in.Len() > 0 {
		scatter, err := plotter.NewScatter(timeXYs(in.DS, in.Y))
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Color = observedColor
		scatter.GlyphStyle.Radius = vg.Points(1)
		p.Add(scatter)
		p.Legend.Add("observed", scatter)
	}

	return render(p, Width, Height)
}

// Components plots trend over the whole frame, then weekly and yearly
// seasonality over one period each, stacked vertically.
func Components(fc *forecast.Forecast) ([]byte, error) {
	if fc == nil || fc.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEmptyData, "no forecast components to chart")
	}

	ds := make([]time.Time, fc.Len())
	trend := make([]float64, fc.Len())
	for i, pt := range fc.Points {
		ds[i], trend[i] = pt.DS, pt.Trend
	}
	trendPlot := newTimePlot("trend", "trend")
	line, err := plotter.NewLine(timeXYs(ds, trend))
	if err != nil {
		return nil, err
	}
	line.Color = yhatColor
	trendPlot.Add(line)

	weeklyPlot, err := seasonPlot(fc.Points, 7, "weekly", "Day of week", func(pt forecast.Point) float64 { return pt.Weekly })
	if err != nil {
		return nil, err
	}
	weeklyPlot.X.Tick.Marker = weekdayTicks{}

	yearlyPlot, err := seasonPlot(fc.Points, 365, "yearly", "Day of year", func(pt forecast.Point) float64 { return pt.Yearly })
	if err != nil {
		return nil, err
	}

	plots := [][]*plot.Plot{{trendPlot}, {weeklyPlot}, {yearlyPlot}}
	img := vgimg.New(Width, 3*Height/2)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:   len(plots),
		Cols:   1,
		PadX:   vg.Millimeter,
		PadY:   3 * vg.Millimeter,
		PadTop: 2 * vg.Millimeter, PadBottom: 2 * vg.Millimeter,
		PadLeft: 2 * vg.Millimeter, PadRight: 2 * vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		plots[j][0].Draw(canvases[j][0])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// seasonPlot draws one seasonal component over a single period, keyed by
// weekday or day of year.
func seasonPlot(points []forecast.Point, period int, title, xLabel string, value func(forecast.Point) float64) (*plot.Plot, error) {
	n := min(period, len(points))
	xys := make(plotter.XYs, 0, n)
	start := len(points) - n
	for _, pt := range points[start:] {
		v := value(pt)
		if math.IsNaN(v) {
			continue
		}
		x := float64(pt.DS.YearDay())
		if period == 7 {
			x = float64(pt.DS.Weekday())
		}
		xys = append(xys, plotter.XY{X: x, Y: v})
	}
	sort.Slice(xys, func(i, j int) bool { return xys[i].X < xys[j].X })

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = title
	p.Add(plotter.NewGrid())
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.Color = yhatColor
	p.Add(line)
	return p, nil
}

type weekdayTicks struct{}

func (weekdayTicks) Ticks(lo, hi float64) []plot.Tick {
	var ticks []plot.Tick
	for d := time.Sunday; d <= time.Saturday; d++ {
		if x := float64(d); x >= lo && x <= hi {
			ticks = append(ticks, plot.Tick{Value: x, Label: d.String()[:3]})
		}
	}
	return ticks
}

func newTimePlot(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())
	return p
}

// timeXYs pairs dates with values, skipping missing values.
func timeXYs(ds []time.Time, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(ds))
	for i, d := range ds {
		if i >= len(ys) || math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(d.Unix()), Y: ys[i]})
	}
	return xys
}

func render(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
