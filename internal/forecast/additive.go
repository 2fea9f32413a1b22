package forecast

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"trendcast-api/pkg/errors"
)

const (
	weeklyPeriod = 7.0
	yearlyPeriod = 365.25

	// Minimum history span, in days, for each seasonality to be enabled.
	weeklyMinSpan = 14.0
	yearlyMinSpan = 730.0

	// z-score of an 80% interval.
	intervalZ = 1.2816

	// Ridge penalty on the seasonal coefficients so weekend gaps do not
	// leave the system singular.
	seasonalPenalty = 1e-3
)

// AdditiveModel fits y = trend + weekly + yearly by least squares, with a
// linear trend and Fourier seasonal terms.
type AdditiveModel struct {
	WeeklyOrder int
	YearlyOrder int
}

// NewAdditiveModel returns a model with weekly order 3 and yearly order 10.
func NewAdditiveModel() *AdditiveModel {
	return &AdditiveModel{WeeklyOrder: 3, YearlyOrder: 10}
}

func (m *AdditiveModel) Name() string { return "additive" }

type additiveFit struct {
	history     []time.Time
	start       time.Time
	spanDays    float64
	yScale      float64
	weeklyOrder int
	yearlyOrder int
	coef        []float64
	sigma       float64
}

// Fit estimates the coefficients. Rows with a missing y are ignored.
func (m *AdditiveModel) Fit(ctx context.Context, in *Input) (Fitted, error) {
	if in == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "forecast input is nil")
	}
	if n := in.DistinctDates(); n < 2 {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory, "need at least 2 distinct dates to fit, got %d", n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ds []time.Time
	var ys []float64
	for i, y := range in.Y {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		ds = append(ds, in.DS[i])
		ys = append(ys, y)
	}

	start, end := ds[0], ds[0]
	yScale := 0.0
	for i, d := range ds {
		if d.Before(start) {
			start = d
		}
		if d.After(end) {
			end = d
		}
		yScale = math.Max(yScale, math.Abs(ys[i]))
	}
	if yScale == 0 {
		yScale = 1
	}

	fit := &additiveFit{
		history:  append([]time.Time(nil), in.DS...),
		start:    start,
		spanDays: end.Sub(start).Hours() / 24,
		yScale:   yScale,
	}
	if fit.spanDays >= weeklyMinSpan {
		fit.weeklyOrder = m.WeeklyOrder
	}
	if fit.spanDays >= yearlyMinSpan {
		fit.yearlyOrder = m.YearlyOrder
	}
	// keep the parameter count below the number of observations
	for fit.params() >= len(ys) && fit.params() > 2 {
		if fit.yearlyOrder > 0 {
			fit.yearlyOrder--
		} else {
			fit.weeklyOrder--
		}
	}

	p := fit.params()
	design := mat.NewDense(len(ys), p, nil)
	target := mat.NewVecDense(len(ys), nil)
	for i, d := range ds {
		design.SetRow(i, fit.features(d))
		target.SetVec(i, ys[i]/yScale)
	}

	var normal mat.Dense
	normal.Mul(design.T(), design)
	for j := 2; j < p; j++ {
		normal.Set(j, j, normal.At(j, j)+seasonalPenalty)
	}
	var rhs mat.VecDense
	rhs.MulVec(design.T(), target)

	var coef mat.VecDense
	if err := coef.SolveVec(&normal, &rhs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeForecastFailed, "least squares fit failed", err)
	}
	fit.coef = make([]float64, p)
	for j := range fit.coef {
		fit.coef[j] = coef.AtVec(j)
	}

	var sse float64
	for i, d := range ds {
		trend, weekly, yearly := fit.components(d)
		r := ys[i] - (trend + weekly + yearly)
		sse += r * r
	}
	fit.sigma = math.Sqrt(sse / float64(len(ys)))

	return fit, nil
}

func (f *additiveFit) params() int {
	return 2 + 2*f.weeklyOrder + 2*f.yearlyOrder
}

// features returns the design row for d: intercept, scaled time, then the
// weekly and yearly Fourier pairs.
func (f *additiveFit) features(d time.Time) []float64 {
	row := make([]float64, 0, f.params())
	t := 0.0
	if f.spanDays > 0 {
		t = d.Sub(f.start).Hours() / 24 / f.spanDays
	}
	row = append(row, 1, t)

	days := float64(d.Unix()) / 86400
	row = appendFourier(row, days, weeklyPeriod, f.weeklyOrder)
	row = appendFourier(row, days, yearlyPeriod, f.yearlyOrder)
	return row
}

func appendFourier(row []float64, days, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * days / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

// components returns trend, weekly and yearly in price units.
func (f *additiveFit) components(d time.Time) (trend, weekly, yearly float64) {
	row := f.features(d)
	trend = (f.coef[0]*row[0] + f.coef[1]*row[1]) * f.yScale
	w := 2 + 2*f.weeklyOrder
	for j := 2; j < w; j++ {
		weekly += f.coef[j] * row[j]
	}
	for j := w; j < len(row); j++ {
		yearly += f.coef[j] * row[j]
	}
	return trend, weekly * f.yScale, yearly * f.yScale
}

func (f *additiveFit) Predict(ctx context.Context, horizonDays int) (*Forecast, error) {
	if horizonDays < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "horizon must not be negative, got %d", horizonDays)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dates := futureDates(f.history, horizonDays)
	out := &Forecast{
		Points:     make([]Point, len(dates)),
		HistoryLen: len(f.history),
	}
	for i, d := range dates {
		trend, weekly, yearly := f.components(d)
		yhat := trend + weekly + yearly
		out.Points[i] = Point{
			DS:        d,
			YHat:      yhat,
			YHatLower: yhat - intervalZ*f.sigma,
			YHatUpper: yhat + intervalZ*f.sigma,
			Trend:     trend,
			Weekly:    weekly,
			Yearly:    yearly,
		}
	}
	return out, nil
}
