// Package cli implements the ingest, report and forecast commands. Each Run*
// function returns the process exit code so mains stay trivial.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"marketpipe/internal/config"
	"marketpipe/internal/logging"
	"marketpipe/internal/svc"
)

// DefaultConfigPath is used when -f is not given; a missing file falls back
// to built-in defaults.
const DefaultConfigPath = "etc/marketpipe.yaml"

// Deps are the collaborators a command needs. Zero fields use the real
// implementations.
type Deps struct {
	Stdout     io.Writer
	Stderr     io.Writer
	LoadConfig func(path string) (*config.Config, error)
	NewService func(c *config.Config) (*svc.ServiceContext, error)
}

func (d Deps) withDefaults() Deps {
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.LoadConfig == nil {
		d.LoadConfig = loadConfig
	}
	if d.NewService == nil {
		d.NewService = svc.NewServiceContext
	}
	return d
}

func loadConfig(path string) (*config.Config, error) {
	if path == DefaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default()
		}
	}
	return config.Load(path)
}

// setup loads configuration and installs logging.
func setup(d Deps, path string) (*config.Config, error) {
	cfg, err := d.LoadConfig(path)
	if err != nil {
		return nil, &ConfigurationError{Msg: "invalid configuration", Err: err}
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return nil, &ConfigurationError{Msg: "invalid log configuration", Err: err}
	}
	return cfg, nil
}

// parseFlags reports whether the command must stop, and with which exit code.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK, true
		}
		return ExitUsage, true
	}
	return 0, false
}

func fail(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	return ExitCode(err)
}

func usageError(fs *flag.FlagSet, msg string) int {
	err := &ConfigurationError{Msg: msg}
	fmt.Fprintf(fs.Output(), "error: %v\n", err)
	fs.Usage()
	return ExitCode(err)
}
