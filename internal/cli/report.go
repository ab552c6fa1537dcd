package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"

	"marketpipe/pkg/report"
)

// RunReport implements `report [-f config] [-data dir] [-out dir] [-combined]`.
// One chart is written per CSV, or a single chart over all of them with -combined.
func RunReport(ctx context.Context, args []string, deps Deps) int {
	d := deps.withDefaults()
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(d.Stderr)
	configPath := fs.String("f", DefaultConfigPath, "the config file")
	dataDir := fs.String("data", "", "directory holding pipeline CSVs (default from config)")
	plotDir := fs.String("out", "", "chart output directory (default from config)")
	combined := fs.Bool("combined", false, "render one chart over all CSVs")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: report [-f config] [-data dir] [-out dir] [-combined]")
		fs.PrintDefaults()
	}
	if code, stop := parseFlags(fs, args); stop {
		return code
	}
	if fs.NArg() != 0 {
		return usageError(fs, "report takes no positional arguments")
	}

	cfg, err := setup(d, *configPath)
	if err != nil {
		return fail(d.Stderr, err)
	}
	data := orDefault(*dataDir, cfg.Report.DataDir)
	out := orDefault(*plotDir, cfg.Report.PlotDir)
	logger := logx.WithContext(ctx)

	if *combined {
		ds, _, err := report.LoadDir(data)
		if err != nil {
			return fail(d.Stderr, err)
		}
		return writeChart(d, out, ds)
	}

	paths, err := filepath.Glob(filepath.Join(data, "*.csv"))
	if err != nil {
		return fail(d.Stderr, err)
	}
	if len(paths) == 0 {
		return fail(d.Stderr, fmt.Errorf("%w: no CSV files in %s", report.ErrNoData, data))
	}
	sort.Strings(paths)

	code := ExitOK
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return fail(d.Stderr, err)
		}
		ds, warnings, err := report.Load(path)
		if err != nil {
			if errors.Is(err, report.ErrNoData) {
				logger.Errorf("report: skip unreadable %s", path)
				continue
			}
			fmt.Fprintf(d.Stderr, "error: %v\n", err)
			code = ExitFailure
			continue
		}
		if msg := report.WarningSummary(warnings); msg != "" {
			fmt.Fprintf(d.Stderr, "warning: %s: %s\n", path, msg)
		}
		if c := writeChart(d, out, ds); c != ExitOK {
			code = c
		}
	}
	return code
}

func writeChart(d Deps, out string, ds *report.Dataset) int {
	path, err := report.WriteChart(out, ds)
	if err != nil {
		return fail(d.Stderr, err)
	}
	s := ds.Summary()
	fmt.Fprintf(d.Stdout, "Plot saved as '%s' (rows=%d avg close=%.2f avg RSI=%.2f)\n", path, s.Points, s.AvgClose, s.AvgRSI)
	return ExitOK
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
