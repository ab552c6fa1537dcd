package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"marketpipe/internal/config"
	"marketpipe/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	journal := cfg.Ingest.JournalDir
	if journal == "" {
		journal = "disabled"
	}
	return []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Ingest: limit=%d window=%d output=%s tz=%s precision=%d",
			cfg.Ingest.Limit, cfg.Ingest.Window, cfg.Ingest.OutputDir, cfg.Location(), cfg.Ingest.Precision),
		fmt.Sprintf("Journal: %s", journal),
		fmt.Sprintf("Report: data=%s plots=%s", cfg.Report.DataDir, cfg.Report.PlotDir),
		fmt.Sprintf("Postgres: %s", presence(cfg.PostgresEnabled())),
		fmt.Sprintf("Redis: %s", presence(cfg.RedisEnabled())),
		fmt.Sprintf("TTL (latest row): %ds", cfg.TTL.Latest),
		sectionLine("Market config", cfg.Market),
	}
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	logx.Info("configuration summary")
	for _, line := range ConfigSummaryLines(cfg) {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: built-in defaults", name)
	}
}
