// Package report loads persisted market CSVs and renders close/RSI charts.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
)

// RequiredColumns must be present in every loaded file.
var RequiredColumns = []string{"timestamp", "close", "RSI"}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ErrNoData is returned when no readable file was found.
var ErrNoData = errors.New("report: no readable data")

// Point is one row of a dataset.
type Point struct {
	Time  time.Time
	Close decimal.NullDecimal
	RSI   decimal.NullDecimal
}

// Dataset is the concatenation of one or more CSV files, ordered by time.
type Dataset struct {
	Name    string
	Sources []string
	Points  []Point
}

// DataQualityWarning describes a row that was dropped or degraded while loading.
type DataQualityWarning struct {
	File   string
	Line   int
	Column string
	Value  string
}

func (w DataQualityWarning) String() string {
	return fmt.Sprintf("%s:%d: invalid %s %q", w.File, w.Line, w.Column, w.Value)
}

// RowDropped reports whether the whole row was discarded. Only an invalid
// timestamp drops a row; bad close or RSI cells are kept as nulls.
func (w DataQualityWarning) RowDropped() bool {
	return w.Column == "timestamp"
}

// CountWarnings splits warnings into dropped rows and nulled cells.
func CountWarnings(warnings []DataQualityWarning) (droppedRows, nulledCells int) {
	for _, w := range warnings {
		if w.RowDropped() {
			droppedRows++
		} else {
			nulledCells++
		}
	}
	return droppedRows, nulledCells
}

// WarningSummary renders the counts for display, or "" when there are none.
func WarningSummary(warnings []DataQualityWarning) string {
	dropped, nulled := CountWarnings(warnings)
	switch {
	case dropped > 0 && nulled > 0:
		return fmt.Sprintf("dropped %d row(s) with invalid timestamps, set %d invalid cell(s) to null", dropped, nulled)
	case dropped > 0:
		return fmt.Sprintf("dropped %d row(s) with invalid timestamps", dropped)
	case nulled > 0:
		return fmt.Sprintf("set %d invalid cell(s) to null", nulled)
	default:
		return ""
	}
}

// LoadDir loads every *.csv file in dir.
func LoadDir(dir string) (*Dataset, []DataQualityWarning, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, nil, fmt.Errorf("report: glob %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("%w: no CSV files in %s", ErrNoData, dir)
	}
	sort.Strings(paths)
	return Load(paths...)
}

// Load reads and concatenates paths. Unreadable files are logged and skipped;
// a file without the required columns is an error.
func Load(paths ...string) (*Dataset, []DataQualityWarning, error) {
	ds := &Dataset{}
	var warnings []DataQualityWarning
	for _, path := range paths {
		points, warns, err := loadFile(path)
		if err != nil {
			var schemaErr *SchemaError
			if errors.As(err, &schemaErr) {
				return nil, warnings, err
			}
			logx.Errorf("report: skip %s: %v", path, err)
			continue
		}
		ds.Sources = append(ds.Sources, path)
		ds.Points = append(ds.Points, points...)
		warnings = append(warnings, warns...)
	}
	if len(ds.Sources) == 0 {
		return nil, warnings, ErrNoData
	}
	for _, w := range warnings {
		if w.RowDropped() {
			logx.Infof("report: warning: %s (row dropped)", w)
		} else {
			logx.Infof("report: warning: %s (set to null)", w)
		}
	}
	sort.SliceStable(ds.Points, func(i, j int) bool { return ds.Points[i].Time.Before(ds.Points[j].Time) })
	ds.Name = datasetName(ds.Sources)
	return ds, warnings, nil
}

func loadFile(path string) ([]Point, []DataQualityWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadCSV(f, path)
}

// SchemaError reports a file that lacks required columns.
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("report: %s must contain columns %s (missing %s)",
		e.File, strings.Join(RequiredColumns, ", "), strings.Join(e.Missing, ", "))
}

// ReadCSV parses one table. Rows whose timestamp cannot be parsed are
// dropped with a warning; unparsable close or RSI cells become nulls with a
// warning.
func ReadCSV(r io.Reader, name string) ([]Point, []DataQualityWarning, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, &SchemaError{File: name, Missing: RequiredColumns}
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &SchemaError{File: name, Missing: missing}
	}
	tsIdx, closeIdx, rsiIdx := index["timestamp"], index["close"], index["RSI"]

	var (
		points   []Point
		warnings []DataQualityWarning
		line     = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("read line %d: %w", line, err)
		}
		raw := cell(rec, tsIdx)
		ts, ok := parseTimestamp(raw)
		if !ok {
			warnings = append(warnings, DataQualityWarning{File: name, Line: line, Column: "timestamp", Value: raw})
			continue
		}
		p := Point{Time: ts}
		var warn *DataQualityWarning
		if p.Close, warn = parseNullable(name, line, "close", cell(rec, closeIdx)); warn != nil {
			warnings = append(warnings, *warn)
		}
		if p.RSI, warn = parseNullable(name, line, "RSI", cell(rec, rsiIdx)); warn != nil {
			warnings = append(warnings, *warn)
		}
		points = append(points, p)
	}
	return points, warnings, nil
}

func cell(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseNullable(file string, line int, column, raw string) (decimal.NullDecimal, *DataQualityWarning) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, &DataQualityWarning{File: file, Line: line, Column: column, Value: raw}
	}
	return decimal.NewNullDecimal(d), nil
}

func datasetName(sources []string) string {
	if len(sources) == 1 {
		base := filepath.Base(sources[0])
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "combined"
}

// Summary aggregates a dataset. Nulls are ignored.
type Summary struct {
	Points     int
	CloseCount int
	RSICount   int
	AvgClose   float64
	AvgRSI     float64
	First      time.Time
	Last       time.Time
}

// Summary computes the average close and RSI.
func (d *Dataset) Summary() Summary {
	s := Summary{Points: len(d.Points)}
	if len(d.Points) == 0 {
		return s
	}
	s.First, s.Last = d.Points[0].Time, d.Points[len(d.Points)-1].Time
	closeSum, rsiSum := decimal.Zero, decimal.Zero
	for _, p := range d.Points {
		if p.Close.Valid {
			closeSum = closeSum.Add(p.Close.Decimal)
			s.CloseCount++
		}
		if p.RSI.Valid {
			rsiSum = rsiSum.Add(p.RSI.Decimal)
			s.RSICount++
		}
	}
	if s.CloseCount > 0 {
		s.AvgClose = closeSum.Div(decimal.NewFromInt(int64(s.CloseCount))).InexactFloat64()
	}
	if s.RSICount > 0 {
		s.AvgRSI = rsiSum.Div(decimal.NewFromInt(int64(s.RSICount))).InexactFloat64()
	}
	return s
}
