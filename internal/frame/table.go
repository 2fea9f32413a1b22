// Package frame holds the tabular price types exchanged between market data
// providers, the normalizer and the forecast adapter.
package frame

import (
	"encoding/json"
	"math"
	"slices"
	"time"
)

// DateColumn is the name of the materialized date column.
const DateColumn = "Date"

// Label identifies a column, one entry per labeling level.
// Flat tables use {"Close"}; batched provider output uses {"Close", "AAPL"}.
type Label []string

// Column is a single column of a RawPriceTable. Exactly one of Values or
// Times is set; a column with Times set is a date column.
type Column struct {
	Label  Label
	Values []float64
	Times  []time.Time
}

// IsTime reports whether the column holds dates.
func (c Column) IsTime() bool {
	return c.Times != nil
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	if c.IsTime() {
		return len(c.Times)
	}
	return len(c.Values)
}

// RawPriceTable is a price table as returned by a provider. Dates are either
// carried in Index or as a time column labeled "Date".
type RawPriceTable struct {
	Index     []time.Time
	IndexName string
	Columns   []Column
}

// Len returns the number of rows.
func (t *RawPriceTable) Len() int {
	if t.Index != nil {
		return len(t.Index)
	}
	if len(t.Columns) > 0 {
		return t.Columns[0].Len()
	}
	return 0
}

// Levels returns the number of labeling levels of the first column, or 0 for
// a table without columns.
func (t *RawPriceTable) Levels() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Label)
}

// PriceTable is the normalized form of a RawPriceTable: a leading Date
// column with timezone-naive values followed by single-level numeric fields.
type PriceTable struct {
	Dates  []time.Time
	Fields []string
	Values map[string][]float64
}

// Len returns the number of rows.
func (t *PriceTable) Len() int {
	return len(t.Dates)
}

// Empty reports whether the table has no rows.
func (t *PriceTable) Empty() bool {
	return t.Len() == 0
}

// Columns returns all column names, Date first.
func (t *PriceTable) Columns() []string {
	return append([]string{DateColumn}, t.Fields...)
}

// Column returns the values of a numeric field.
func (t *PriceTable) Column(name string) ([]float64, bool) {
	v, ok := t.Values[name]
	return v, ok
}

// Last returns the last value of a numeric field.
func (t *PriceTable) Last(name string) (float64, bool) {
	v, ok := t.Values[name]
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[len(v)-1], true
}

// Tail returns a copy of the last n rows.
func (t *PriceTable) Tail(n int) *PriceTable {
	n = max(0, min(n, t.Len()))
	from := t.Len() - n
	out := &PriceTable{
		Dates:  cloneTimes(t.Dates[from:]),
		Fields: slices.Clone(t.Fields),
		Values: make(map[string][]float64, len(t.Values)),
	}
	for name, vals := range t.Values {
		out.Values[name] = slices.Clone(vals[from:])
	}
	return out
}

// Raw converts the table back into a single-level RawPriceTable with Date as
// a regular leading column.
func (t *PriceTable) Raw() *RawPriceTable {
	cols := make([]Column, 0, len(t.Fields)+1)
	cols = append(cols, Column{Label: Label{DateColumn}, Times: cloneTimes(t.Dates)})
	for _, f := range t.Fields {
		cols = append(cols, Column{Label: Label{f}, Values: slices.Clone(t.Values[f])})
	}
	return &RawPriceTable{Columns: cols}
}

func cloneTimes(ts []time.Time) []time.Time {
	out := make([]time.Time, len(ts))
	copy(out, ts)
	return out
}

type jsonTable struct {
	Dates  []time.Time           `json:"dates"`
	Fields []string              `json:"fields"`
	Values map[string][]*float64 `json:"values"`
}

// MarshalJSON encodes NaN values as null.
func (t *PriceTable) MarshalJSON() ([]byte, error) {
	jt := jsonTable{
		Dates:  t.Dates,
		Fields: t.Fields,
		Values: make(map[string][]*float64, len(t.Values)),
	}
	for name, vals := range t.Values {
		out := make([]*float64, len(vals))
		for i := range vals {
			if !math.IsNaN(vals[i]) {
				v := vals[i]
				out[i] = &v
			}
		}
		jt.Values[name] = out
	}
	return json.Marshal(jt)
}

// UnmarshalJSON decodes null values as NaN.
func (t *PriceTable) UnmarshalJSON(data []byte) error {
	var jt jsonTable
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	t.Dates = jt.Dates
	if t.Dates == nil {
		t.Dates = []time.Time{}
	}
	t.Fields = jt.Fields
	t.Values = make(map[string][]float64, len(jt.Values))
	for name, vals := range jt.Values {
		out := make([]float64, len(vals))
		for i, v := range vals {
			if v == nil {
				out[i] = math.NaN()
				continue
			}
			out[i] = *v
		}
		t.Values[name] = out
	}
	return nil
}
