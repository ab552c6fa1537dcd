package series

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LeftJoin attaches the columns of secondary to every row of primary whose key
// matches exactly. Primary order and cardinality are preserved; unmatched
// primary rows carry nulls and unmatched secondary rows are dropped. When
// secondary repeats a key the first occurrence wins.
func LeftJoin(primary, secondary *Frame) (*Frame, error) {
	if primary == nil {
		primary = NewFrame()
	}
	if secondary == nil {
		secondary = NewFrame()
	}
	for _, col := range secondary.Columns {
		if primary.ColumnIndex(col) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrColumnCollision, col)
		}
	}

	lookup := make(map[int64]int, len(secondary.Index))
	for i, ts := range secondary.Index {
		key := ts.UnixMilli()
		if _, seen := lookup[key]; !seen {
			lookup[key] = i
		}
	}

	width := len(primary.Columns) + len(secondary.Columns)
	out := &Frame{
		Index:   make([]time.Time, len(primary.Index)),
		Columns: make([]string, 0, width),
		Rows:    make([][]decimal.NullDecimal, len(primary.Rows)),
	}
	out.Columns = append(out.Columns, primary.Columns...)
	out.Columns = append(out.Columns, secondary.Columns...)
	copy(out.Index, primary.Index)

	for i, ts := range primary.Index {
		row := make([]decimal.NullDecimal, width)
		copy(row, primary.Rows[i])
		if j, ok := lookup[ts.UnixMilli()]; ok {
			copy(row[len(primary.Columns):], secondary.Rows[j])
		}
		out.Rows[i] = row
	}
	return out, nil
}

// Merge left-joins each of others onto primary in call order.
func Merge(primary *Frame, others ...*Frame) (*Frame, error) {
	out := primary
	if out == nil {
		out = NewFrame()
	}
	for i, other := range others {
		joined, err := LeftJoin(out, other)
		if err != nil {
			return nil, fmt.Errorf("merge frame %d: %w", i+1, err)
		}
		out = joined
	}
	if len(others) == 0 {
		return LeftJoin(out, nil)
	}
	return out, nil
}
