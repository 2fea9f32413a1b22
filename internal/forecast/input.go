// Package forecast prepares normalized price tables for a time-series model
// and hosts the model collaborators that turn them into forecasts.
package forecast

import (
	"math"
	"slices"
	"time"

	"trendcast-api/internal/frame"
	"trendcast-api/pkg/errors"
)

// Column names of the model input.
const (
	TimestampColumn = "ds"
	ValueColumn     = "y"
)

// ValueField is the price field projected onto y.
const ValueField = "Close"

// Input is the two-column (ds, y) series consumed by a Model.
type Input struct {
	DS []time.Time
	Y  []float64
}

// Len returns the number of rows.
func (in *Input) Len() int {
	return len(in.DS)
}

// Last returns the last observed value.
func (in *Input) Last() (float64, bool) {
	if len(in.Y) == 0 {
		return 0, false
	}
	return in.Y[len(in.Y)-1], true
}

// DistinctDates counts the distinct timestamps that carry a finite observation.
func (in *Input) DistinctDates() int {
	seen := make(map[time.Time]struct{}, len(in.DS))
	for i, d := range in.DS {
		if math.IsNaN(in.Y[i]) || math.IsInf(in.Y[i], 0) {
			continue
		}
		seen[d] = struct{}{}
	}
	return len(seen)
}

// ToForecastInput projects Date onto ds and Close onto y. Row count and order
// are preserved; an empty table yields an empty Input.
func ToForecastInput(table *frame.PriceTable) (*Input, error) {
	if table == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "price table is nil")
	}

	closes, ok := table.Column(ValueField)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "price table has no %q column", ValueField)
	}
	if len(closes) != table.Len() {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "price table has %d dates for %d %s values", table.Len(), len(closes), ValueField)
	}

	in := &Input{
		DS: make([]time.Time, table.Len()),
		Y:  slices.Clone(closes),
	}
	copy(in.DS, table.Dates)
	if in.Y == nil {
		in.Y = []float64{}
	}

	return in, nil
}
