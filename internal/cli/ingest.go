package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"marketpipe/pkg/pipeline"
)

// RunIngest implements `ingest [-f config] [-limit n] [-window n] [-out dir] SYMBOL INTERVAL`.
func RunIngest(ctx context.Context, args []string, deps Deps) int {
	d := deps.withDefaults()
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(d.Stderr)
	configPath := fs.String("f", DefaultConfigPath, "the config file")
	limit := fs.Int("limit", 0, "number of candles to fetch (default from config)")
	window := fs.Int("window", 0, "RSI window (default from config)")
	outDir := fs.String("out", "", "output directory (default from config)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: ingest [-f config] [-limit n] [-window n] [-out dir] SYMBOL INTERVAL")
		fs.PrintDefaults()
	}
	if code, stop := parseFlags(fs, args); stop {
		return code
	}
	if fs.NArg() != 2 {
		return usageError(fs, fmt.Sprintf("expected SYMBOL and INTERVAL, got %d argument(s)", fs.NArg()))
	}
	symbol, interval := fs.Arg(0), fs.Arg(1)

	cfg, err := setup(d, *configPath)
	if err != nil {
		return fail(d.Stderr, err)
	}
	if *outDir != "" {
		cfg.Ingest.OutputDir = *outDir
	}
	LogConfigSummary(cfg)

	sc, err := d.NewService(cfg)
	if err != nil {
		return fail(d.Stderr, &ConfigurationError{Msg: "unable to initialise services", Err: err})
	}

	req := pipeline.Request{
		Symbol:   symbol,
		Interval: interval,
		Limit:    firstPositive(*limit, cfg.Ingest.Limit),
		Window:   firstPositive(*window, cfg.Ingest.Window),
	}
	res, err := sc.Pipeline().Run(ctx, req)
	if err != nil {
		return fail(d.Stderr, err)
	}
	logx.WithContext(ctx).Infof("ingest: done symbol=%s rows=%d", symbol, res.Rows)
	fmt.Fprintf(d.Stdout, "wrote %d rows to %s\n", res.Rows, res.Path)
	return ExitOK
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
