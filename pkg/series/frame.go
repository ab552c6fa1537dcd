// Package series holds time-indexed tables of nullable decimals and the
// left join used to align them.
package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrColumnCollision is returned when a join would produce duplicate column names.
var ErrColumnCollision = errors.New("series: column name collision")

// Frame is a table keyed by instant. Rows[i] holds one value per column for Index[i].
type Frame struct {
	Index   []time.Time
	Columns []string
	Rows    [][]decimal.NullDecimal
}

// NewFrame returns an empty frame with the given columns.
func NewFrame(columns ...string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols}
}

// Len reports the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Index)
}

// Append adds a row. values must match the column count.
func (f *Frame) Append(ts time.Time, values ...decimal.NullDecimal) error {
	if len(values) != len(f.Columns) {
		return fmt.Errorf("series: row has %d values, frame has %d columns", len(values), len(f.Columns))
	}
	row := make([]decimal.NullDecimal, len(values))
	copy(row, values)
	f.Index = append(f.Index, ts)
	f.Rows = append(f.Rows, row)
	return nil
}

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]decimal.NullDecimal, bool) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]decimal.NullDecimal, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// AddColumn attaches values as a new trailing column.
func (f *Frame) AddColumn(name string, values []decimal.NullDecimal) error {
	if f.ColumnIndex(name) >= 0 {
		return fmt.Errorf("%w: %q", ErrColumnCollision, name)
	}
	if len(values) != len(f.Rows) {
		return fmt.Errorf("series: column %q has %d values, frame has %d rows", name, len(values), len(f.Rows))
	}
	f.Columns = append(f.Columns, name)
	for i := range f.Rows {
		f.Rows[i] = append(f.Rows[i], values[i])
	}
	return nil
}

// Last returns the final row and its key.
func (f *Frame) Last() (time.Time, []decimal.NullDecimal, bool) {
	if f.Len() == 0 {
		return time.Time{}, nil, false
	}
	n := len(f.Index) - 1
	return f.Index[n], f.Rows[n], true
}
