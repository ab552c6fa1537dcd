package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunRecord captures one ingestion run for audit and later comparison.
type RunRecord struct {
	Timestamp    time.Time      `json:"timestamp"`
	RunNumber    int            `json:"run_number"`
	Symbol       string         `json:"symbol"`
	Interval     string         `json:"interval"`
	Limit        int            `json:"limit"`
	Window       int            `json:"window"`
	Rows         int            `json:"rows"`
	FundingRows  int            `json:"funding_rows"`
	OutputPath   string         `json:"output_path,omitempty"`
	Duration     time.Duration  `json:"duration_ns"`
	Success      bool           `json:"success"`
	FailedStage  string         `json:"failed_stage,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Writer persists run records to a directory as JSON files.
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	return &Writer{dir: dir, nowFn: time.Now}
}

// Dir returns the target directory.
func (w *Writer) Dir() string { return w.dir }

// WriteRun writes rec to a timestamped JSON file and returns its path.
func (w *Writer) WriteRun(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("journal: create dir: %w", err)
	}

	w.mu.Lock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.RunNumber = w.seq
	w.mu.Unlock()

	name := fmt.Sprintf("run_%s_%s_%05d.json",
		strings.ToLower(rec.Symbol), rec.Timestamp.UTC().Format("20060102_150405"), rec.RunNumber)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
