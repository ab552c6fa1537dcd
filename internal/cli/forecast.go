package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"marketpipe/pkg/forecast"
	"marketpipe/pkg/report"
)

// RunForecast implements `forecast [-f config] [-min-train n] [-horizon n] [-report path] CSV_PATH`.
func RunForecast(ctx context.Context, args []string, deps Deps) int {
	d := deps.withDefaults()
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(d.Stderr)
	configPath := fs.String("f", DefaultConfigPath, "the config file")
	minTrain := fs.Int("min-train", 0, "observations required before predicting (default from config)")
	horizon := fs.Int("horizon", 0, "bars ahead to predict (default from config)")
	reportPath := fs.String("report", "", "write a JSON report to this path")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: forecast [-f config] [-min-train n] [-horizon n] [-report path] CSV_PATH")
		fs.PrintDefaults()
	}
	if code, stop := parseFlags(fs, args); stop {
		return code
	}
	if fs.NArg() != 1 {
		return usageError(fs, fmt.Sprintf("expected CSV_PATH, got %d argument(s)", fs.NArg()))
	}

	cfg, err := setup(d, *configPath)
	if err != nil {
		return fail(d.Stderr, err)
	}
	feeder, warnings, err := forecast.NewCSVFeederFromFile(fs.Arg(0))
	if err != nil {
		return fail(d.Stderr, err)
	}
	if msg := report.WarningSummary(warnings); msg != "" {
		fmt.Fprintf(d.Stderr, "warning: %s\n", msg)
	}

	fc := cfg.Forecast
	engine := &forecast.Engine{
		Feeder:     feeder,
		Predictors: forecast.DefaultPredictors(fc.TSFPeriod, fc.EMAPeriod),
		MinTrain:   firstPositive(*minTrain, fc.MinTrain),
		Horizon:    firstPositive(*horizon, fc.Horizon),
		OutputPath: orDefault(*reportPath, fc.ReportPath),
	}
	res, err := engine.Run(ctx)
	if err != nil {
		return fail(d.Stderr, err)
	}
	if res.Evaluated == 0 {
		fmt.Fprintf(d.Stderr, "error: not enough data: %d observations, need more than %d\n", res.Steps, res.MinTrain)
		return ExitFailure
	}

	tw := tabwriter.NewWriter(d.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PREDICTOR\tCOUNT\tMAE\tRMSE\tNEXT")
	next := make(map[string]float64, len(res.Forecasts))
	for _, f := range res.Forecasts {
		next[f.Predictor] = f.Value
	}
	for _, m := range res.Metrics {
		nextCol := "-"
		if v, ok := next[m.Predictor]; ok {
			nextCol = fmt.Sprintf("%.2f", v)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%s\n", m.Predictor, m.Count, m.MAE, m.RMSE, nextCol)
	}
	if err := tw.Flush(); err != nil {
		return fail(d.Stderr, err)
	}
	if best, ok := res.Best(); ok {
		fmt.Fprintf(d.Stdout, "best: %s (rmse %.4f)\n", best.Predictor, best.RMSE)
	}
	return ExitOK
}
