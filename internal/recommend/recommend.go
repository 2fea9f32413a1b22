// Package recommend turns the last observed and last predicted prices into a
// BULLISH or BEARISH call.
package recommend

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"trendcast-api/pkg/errors"
)

// Trend is the direction of a recommendation.
type Trend string

const (
	Bullish Trend = "BULLISH"
	Bearish Trend = "BEARISH"
)

// Result is a single recommendation.
type Result struct {
	Trend         Trend   `json:"trend"`
	LastObserved  float64 `json:"last_observed"`
	LastPredicted float64 `json:"last_predicted"`
	// ChangePercent is the predicted move relative to the last observation,
	// rounded to two decimals. It is zero when the last observation is zero.
	ChangePercent float64 `json:"change_percent"`
}

// Recommend is BULLISH only when the prediction is strictly above the last
// observation; ties are BEARISH.
func Recommend(lastObserved, lastPredicted float64) (Result, error) {
	if !finite(lastObserved) || !finite(lastPredicted) {
		return Result{}, errors.Newf(errors.ErrCodeInvalidParameter, "prices must be finite, got observed=%v predicted=%v", lastObserved, lastPredicted)
	}

	trend := Bearish
	if lastPredicted > lastObserved {
		trend = Bullish
	}
	return Result{
		Trend:         trend,
		LastObserved:  lastObserved,
		LastPredicted: lastPredicted,
		ChangePercent: changePercent(lastObserved, lastPredicted),
	}, nil
}

var hundred = decimal.NewFromInt(100)

func changePercent(observed, predicted float64) float64 {
	if observed == 0 {
		return 0
	}
	obs := decimal.NewFromFloat(observed)
	return decimal.NewFromFloat(predicted).Sub(obs).Div(obs.Abs()).Mul(hundred).Round(2).InexactFloat64()
}

// Message renders the banner shown with a forecast.
func (r Result) Message() string {
	label := "Bearish"
	if r.Trend == Bullish {
		label = "Bullish"
	}
	return fmt.Sprintf("%s trend. The model predicts a price of %s versus %s today.",
		label, FormatPrice(r.LastPredicted), FormatPrice(r.LastObserved))
}

// FormatPrice renders v with exactly two decimals. Rounding works on the
// exact binary value with ties to even, so 2.675 renders as "2.67".
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
