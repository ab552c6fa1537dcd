package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketpipe/pkg/series"
)

const (
	// TimestampLayout is the display format of the timestamp column in UTC.
	TimestampLayout = "2006-01-02 15:04:05"
	// ZonedTimestampLayout is used for any other zone, so the hour repeated
	// at a daylight-saving change stays distinct and reloads unambiguously.
	ZonedTimestampLayout = "2006-01-02 15:04:05-07:00"
	TimestampColumn      = "timestamp"
	DefaultPrecision     = 2
)

// LayoutFor returns the timestamp layout used when rendering in loc.
func LayoutFor(loc *time.Location) string {
	if loc == nil || loc == time.UTC {
		return TimestampLayout
	}
	return ZonedTimestampLayout
}

// CSVSink writes frames to <Dir>/<symbol>_data.csv. Files are replaced
// atomically so readers never observe a partial table.
type CSVSink struct {
	Dir       string
	Location  *time.Location
	Precision int32
}

// NewCSVSink returns a sink rooted at dir. A nil location means UTC.
func NewCSVSink(dir string, loc *time.Location, precision int32) *CSVSink {
	if loc == nil {
		loc = time.UTC
	}
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &CSVSink{Dir: dir, Location: loc, Precision: precision}
}

// PathFor returns the output file for symbol.
func (s *CSVSink) PathFor(symbol string) string {
	return filepath.Join(s.Dir, strings.ToLower(strings.TrimSpace(symbol))+"_data.csv")
}

// Persist implements Sink.
func (s *CSVSink) Persist(ctx context.Context, symbol string, frame *series.Frame) (string, error) {
	if strings.TrimSpace(symbol) == "" {
		return "", fmt.Errorf("csv sink: empty symbol")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("csv sink: create dir %s: %w", s.Dir, err)
	}

	target := s.PathFor(symbol)
	tmp, err := os.CreateTemp(s.Dir, "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("csv sink: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := WriteCSV(tmp, frame, s.location(), s.Precision); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("csv sink: write %s: %w", target, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("csv sink: sync %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("csv sink: close %s: %w", target, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("csv sink: chmod %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("csv sink: rename into %s: %w", target, err)
	}
	committed = true
	return target, nil
}

func (s *CSVSink) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// WriteCSV encodes frame with a leading timestamp column. Numbers are fixed
// to precision places and nulls become empty cells.
func WriteCSV(w io.Writer, frame *series.Frame, loc *time.Location, precision int32) error {
	if frame == nil {
		frame = series.NewFrame()
	}
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(frame.Columns)+1)
	header = append(header, TimestampColumn)
	header = append(header, frame.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	layout := LayoutFor(loc)
	record := make([]string, len(header))
	for i, ts := range frame.Index {
		record[0] = ts.In(loc).Format(layout)
		for j, v := range frame.Rows[i] {
			if v.Valid {
				record[j+1] = v.Decimal.StringFixed(precision)
			} else {
				record[j+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
