package forecast

import (
	"context"
	"time"
)

// DaysPerYear converts a horizon in years into forecast periods.
const DaysPerYear = 365

// Model fits a forecasting model on an Input.
type Model interface {
	Name() string
	Fit(ctx context.Context, in *Input) (Fitted, error)
}

// Fitted is a model fitted on a specific Input.
type Fitted interface {
	// Predict forecasts the history span followed by horizonDays future daily rows.
	Predict(ctx context.Context, horizonDays int) (*Forecast, error)
}

// Point is one row of a Forecast.
type Point struct {
	DS        time.Time `json:"ds"`
	YHat      float64   `json:"yhat"`
	YHatLower float64   `json:"yhat_lower"`
	YHatUpper float64   `json:"yhat_upper"`
	Trend     float64   `json:"trend"`
	Weekly    float64   `json:"weekly"`
	Yearly    float64   `json:"yearly"`
}

// Forecast is the model output. The first HistoryLen points align
// date-for-date with the fitted Input.
type Forecast struct {
	Points     []Point `json:"points"`
	HistoryLen int     `json:"history_len"`
}

// Len returns the number of rows.
func (f *Forecast) Len() int {
	return len(f.Points)
}

// Last returns the final forecast row.
func (f *Forecast) Last() (Point, bool) {
	if len(f.Points) == 0 {
		return Point{}, false
	}
	return f.Points[len(f.Points)-1], true
}

// Tail returns the last n rows.
func (f *Forecast) Tail(n int) []Point {
	if n <= 0 {
		return []Point{}
	}
	if n > len(f.Points) {
		n = len(f.Points)
	}
	out := make([]Point, n)
	copy(out, f.Points[len(f.Points)-n:])
	return out
}

// Future returns the rows after the history span.
func (f *Forecast) Future() []Point {
	if f.HistoryLen >= len(f.Points) {
		return []Point{}
	}
	return f.Points[f.HistoryLen:]
}

// futureDates returns the history dates followed by periods consecutive days
// after the last one.
func futureDates(history []time.Time, periods int) []time.Time {
	out := make([]time.Time, 0, len(history)+periods)
	out = append(out, history...)
	if len(history) == 0 {
		return out
	}
	last := history[0]
	for _, d := range history[1:] {
		if d.After(last) {
			last = d
		}
	}
	for i := 1; i <= periods; i++ {
		out = append(out, last.AddDate(0, 0, i))
	}
	return out
}
