package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendcast-api/internal/frame"
	"trendcast-api/pkg/errors"
)

func days(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2021, 1, 1+i, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func TestToForecastInputProjectsDateAndClose(t *testing.T) {
	table := &frame.PriceTable{
		Dates:  days(3),
		Fields: []string{"Open", "Close"},
		Values: map[string][]float64{
			"Open":  {1, 2, 3},
			"Close": {10, math.NaN(), 30},
		},
	}

	in, err := ToForecastInput(table)
	require.NoError(t, err)
	assert.Equal(t, 3, in.Len())
	assert.Equal(t, table.Dates, in.DS)
	assert.Equal(t, 10.0, in.Y[0])
	assert.True(t, math.IsNaN(in.Y[1]))
	assert.Equal(t, 2, in.DistinctDates())

	last, ok := in.Last()
	assert.True(t, ok)
	assert.Equal(t, 30.0, last)

	// the input does not alias the table
	in.Y[0] = -1
	assert.Equal(t, 10.0, table.Values["Close"][0])
}

func TestToForecastInputEmptyTable(t *testing.T) {
	table, err := frame.Normalize(&frame.RawPriceTable{})
	require.NoError(t, err)

	in, err := ToForecastInput(table)
	require.NoError(t, err)
	assert.Equal(t, 0, in.Len())
	assert.NotNil(t, in.Y)

	_, ok := in.Last()
	assert.False(t, ok)
}

func TestToForecastInputRejectsBadTables(t *testing.T) {
	_, err := ToForecastInput(nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = ToForecastInput(&frame.PriceTable{
		Dates:  days(1),
		Fields: []string{"Open"},
		Values: map[string][]float64{"Open": {1}},
	})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func TestNormalizeThenAdaptTwoLevelTable(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	index := make([]time.Time, 5)
	for i := range index {
		index[i] = time.Date(2021, 1, 1+i, 0, 0, 0, 0, ny)
	}
	raw := &frame.RawPriceTable{
		Index:     index,
		IndexName: "Date",
		Columns: []frame.Column{
			{Label: frame.Label{"Open", "TEST"}, Values: []float64{1, 2, 3, 4, 5}},
			{Label: frame.Label{"Close", "TEST"}, Values: []float64{1.5, 2.5, 3.5, 4.5, 5.5}},
		},
	}

	table, err := frame.Normalize(raw)
	require.NoError(t, err)
	in, err := ToForecastInput(table)
	require.NoError(t, err)

	require.Equal(t, 5, in.Len())
	assert.Equal(t, []float64{1.5, 2.5, 3.5, 4.5, 5.5}, in.Y)
	for i, d := range in.DS {
		assert.False(t, frame.HasZone(d))
		assert.Equal(t, days(5)[i], d)
		if i > 0 {
			assert.True(t, d.After(in.DS[i-1]))
		}
	}
}

func TestForecastTailAndFuture(t *testing.T) {
	f := &Forecast{HistoryLen: 2}
	for i, d := range days(4) {
		f.Points = append(f.Points, Point{DS: d, YHat: float64(i)})
	}

	assert.Len(t, f.Tail(3), 3)
	assert.Len(t, f.Tail(10), 4)
	assert.Empty(t, f.Tail(0))
	assert.Equal(t, 2.0, f.Future()[0].YHat)

	last, ok := f.Last()
	assert.True(t, ok)
	assert.Equal(t, 3.0, last.YHat)
}
