package frame

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"trendcast-api/pkg/errors"
)

// RequiredFields must be present in every non-empty normalized table.
var RequiredFields = []string{"Open", "Close"}

// SchemaAmbiguityError is returned when collapsing column levels would
// produce duplicate column names.
type SchemaAmbiguityError struct {
	Duplicates []string
}

func (e *SchemaAmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous column names after collapsing levels: %s", strings.Join(e.Duplicates, ", "))
}

// ErrorCode implements errors.Coder.
func (e *SchemaAmbiguityError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeSchemaAmbiguity
}

// Normalize converts a raw provider table into a PriceTable: the inner
// (ticker) column level is dropped, the date index becomes the leading Date
// column and timezones are stripped from the dates keeping wall-clock values.
// Rows are neither reordered nor filtered. An empty raw table yields an empty
// PriceTable that still carries the required fields.
func Normalize(raw *RawPriceTable) (*PriceTable, error) {
	if raw == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "raw price table is nil")
	}

	names, err := collapseLevels(raw.Columns)
	if err != nil {
		return nil, err
	}

	dates, err := dateSource(raw, names)
	if err != nil {
		return nil, err
	}
	rows := raw.Len()
	if len(dates) != rows {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "price table has %d dates for %d rows", len(dates), rows)
	}

	out := &PriceTable{
		Dates:  make([]time.Time, len(dates)),
		Fields: make([]string, 0, len(names)),
		Values: make(map[string][]float64, len(names)),
	}
	for i, d := range dates {
		out.Dates[i] = StripZone(d)
	}

	for i, col := range raw.Columns {
		name := names[i]
		// a zero-row Date column may carry neither Times nor Values
		if col.IsTime() || (name == DateColumn && rows == 0 && col.Len() == 0) {
			if name == DateColumn && raw.Index == nil {
				continue
			}
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "column %q holds dates, only %q may", name, DateColumn)
		}
		if name == DateColumn {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "column %q must hold dates", DateColumn)
		}
		if col.Len() != rows {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "column %q has %d rows, expected %d", name, col.Len(), rows)
		}
		out.Fields = append(out.Fields, name)
		out.Values[name] = slices.Clone(col.Values)
	}

	for _, req := range RequiredFields {
		if _, ok := out.Values[req]; ok {
			continue
		}
		if rows > 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "price table is missing required column %q", req)
		}
		out.Fields = append(out.Fields, req)
		out.Values[req] = []float64{}
	}

	return out, nil
}

// collapseLevels returns one name per column, dropping the inner level of
// two-level labels.
func collapseLevels(cols []Column) ([]string, error) {
	if len(cols) == 0 {
		return nil, nil
	}

	levels := len(cols[0].Label)
	if levels < 1 || levels > 2 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported column labeling with %d levels", levels)
	}

	names := make([]string, len(cols))
	seen := make(map[string]int, len(cols))
	for i, c := range cols {
		if len(c.Label) != levels {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "column %d has %d label levels, expected %d", i, len(c.Label), levels)
		}
		names[i] = c.Label[0]
		seen[names[i]]++
	}

	var dups []string
	for name, n := range seen {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, &SchemaAmbiguityError{Duplicates: dups}
	}

	return names, nil
}

// dateSource picks the index, or the Date column when there is no index.
func dateSource(raw *RawPriceTable, names []string) ([]time.Time, error) {
	dateCol := slices.Index(names, DateColumn)

	if raw.Index != nil {
		if dateCol >= 0 {
			return nil, &SchemaAmbiguityError{Duplicates: []string{DateColumn}}
		}
		return raw.Index, nil
	}

	if dateCol >= 0 {
		return raw.Columns[dateCol].Times, nil
	}

	if raw.Len() > 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "price table has %d rows but no dates", raw.Len())
	}
	return nil, nil
}

// HasZone reports whether t carries timezone information. Naive times are
// represented in UTC.
func HasZone(t time.Time) bool {
	return t.Location() != time.UTC
}

// StripZone drops the timezone of t, keeping its wall-clock value.
func StripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
