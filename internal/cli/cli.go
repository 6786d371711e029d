package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/chgresrun/internal/app"
	"github.com/vk/chgresrun/internal/driver"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/vk/chgresrun/internal/staging"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// fileList collects a repeatable path flag.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	if v == "" {
		return errors.New("path must not be empty")
	}
	*f = append(*f, v)
	return nil
}

// cycleLayouts are the accepted cycle formats, tried in order.
var cycleLayouts = []string{
	"2006-01-02T15",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseCycle parses an ISO 8601 cycle such as 2024-07-15T18. Times without
// a zone are UTC.
func ParseCycle(s string) (time.Time, error) {
	for _, layout := range cycleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid cycle %q: expected ISO 8601, e.g. 2024-07-15T18", s)
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("chgresrun", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
chgresrun - Runs chgres_cube for the initial or lateral boundary conditions of one cycle.

Usage:
  chgresrun -c PATH --cycle ISO8601 --key-path KEY[.KEY...] [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	var files fileList
	flagSet.Var(&files, "c", "Path to experiment config file or directory (shorthand, repeatable).")
	flagSet.Var(&files, "config-file", "Path to experiment config file or directory. Repeat to merge several, later wins.")
	cycleFlag := flagSet.String("cycle", "", "The cycle in ISO8601 format (e.g. 2024-07-15T18).")
	keyPathFlag := flagSet.String("key-path", "", "Dot-separated path of keys leading through the config to the task block.")
	memberFlag := flagSet.String("member", app.DefaultMember, "The 3-digit ensemble member number.")
	driverFlag := flagSet.String("driver", driver.ChgresCubeName, "Name of the driver to run.")
	cadenceFlag := flagSet.String("staging-cadence", string(staging.PerIteration), "When boundary files are staged. Options: 'per-iteration' or 'deferred'.")
	targetFlag := flagSet.String("staging-target", string(staging.TargetInput), "Where outputs are staged. Options: 'input' (sibling INPUT dir) or 'parent'.")
	modeFlag := flagSet.String("staging-mode", string(staging.ModeLink), "How outputs are staged. Options: 'link' or 'copy'.")
	bcgrpFlag := flagSet.Int("bcgrp", 0, "First forecast hour index of this boundary group.")
	bcgrpnumFlag := flagSet.Int("bcgrpnum", 1, "Number of boundary groups; the stride between forecast hour indices.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Resolve the config and plan staging without running the driver.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err.Error())
	}
	slog.Debug("Arguments parsed successfully.")

	if len(args) == 0 {
		slog.Debug("No arguments provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 0 {
		return nil, false, usageError("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))
	}

	if len(files) == 0 {
		return nil, false, usageError("missing required flag: -c/--config-file")
	}
	if *cycleFlag == "" {
		return nil, false, usageError("missing required flag: --cycle")
	}
	if *keyPathFlag == "" {
		return nil, false, usageError("missing required flag: --key-path")
	}

	cycle, err := ParseCycle(*cycleFlag)
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}
	keyPath, err := keypath.Parse(*keyPathFlag)
	if err != nil {
		return nil, false, usageError("invalid key-path: %s", err.Error())
	}

	cadence, err := staging.ParseCadence(*cadenceFlag)
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}
	target, err := staging.ParseTarget(*targetFlag)
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}
	mode, err := staging.ParseMode(*modeFlag)
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}

	if *bcgrpnumFlag < 1 {
		return nil, false, usageError("invalid bcgrpnum: must be >= 1")
	}
	if *bcgrpFlag < 0 || *bcgrpFlag >= *bcgrpnumFlag {
		return nil, false, usageError("invalid bcgrp: must be in [0, bcgrpnum)")
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if err := app.ValidateFormat(logFormat); err != nil {
		return nil, false, usageError("%s", err.Error())
	}
	logLevel := strings.ToLower(*logLevelFlag)
	if _, err := app.ParseLevel(logLevel); err != nil {
		return nil, false, usageError("%s", err.Error())
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigFiles:        files,
		Cycle:              cycle,
		KeyPath:            keyPath,
		Member:             *memberFlag,
		Driver:             *driverFlag,
		Staging:            staging.Policy{Cadence: cadence, Target: target, Mode: mode},
		BoundaryGroup:      *bcgrpFlag,
		BoundaryGroupCount: *bcgrpnumFlag,
		DryRun:             *dryRunFlag,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
	})
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
