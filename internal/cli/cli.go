package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/computegrid/internal/app"
	"github.com/specialistvlad/computegrid/internal/config"
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

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ", ") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// defaults are the lowest settings layer, below the config file and the
// COMPUTEGRID_* environment.
var defaults = map[string]any{
	"log-format":       "json",
	"log-level":        "info",
	"healthcheck-port": 0,
	"workers":          4,
	"cycles":           0,
	"tick":             "10ms",
	"timeout":          "30s",
	"check":            false,
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("computegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
ComputeGrid - A reactive runtime for states and derived computes.

Usage:
  computegrid [options] [GRID_PATH]

Arguments:
  GRID_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Every option can also be set with a COMPUTEGRID_<OPTION> environment variable
(dashes become underscores) or in the file passed to --config.

Options:
`)
		flagSet.PrintDefaults()
	}

	var sets, dispatch stringList
	gridFlag := flagSet.String("grid", "", "Path to the grid file or directory.")
	gFlag := flagSet.String("g", "", "Path to the grid file or directory (shorthand).")
	configFlag := flagSet.String("config", "", "Optional config file (yaml, json, toml, ...).")
	flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.Int("workers", 4, "Number of workers for background commands.")
	flagSet.Int("cycles", 0, "Run exactly this many cycles. 0 runs until the grid settles.")
	flagSet.Duration("tick", 0, "Delay between cycles while settling (default 10ms).")
	flagSet.Duration("timeout", 0, "Maximum time to wait for the grid to settle (default 30s).")
	flagSet.Bool("check", false, "Validate the grid, print the evaluation order and exit.")
	flagSet.Var(&sets, "set", "Set a state before the first cycle, as name=expression. Repeatable.")
	flagSet.Var(&dispatch, "dispatch", "Dispatch a command once the grid settled. Repeatable.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *gridFlag != "" {
		path = *gridFlag
	} else if *gFlag != "" {
		path = *gFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	// Only flags given on the command line override the lower layers.
	overrides := make(map[string]any)
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grid", "g", "config", "set", "dispatch":
			return
		}
		overrides[f.Name] = f.Value.String()
	})
	if path != "" {
		overrides["grid"] = path
	}
	if len(sets) > 0 {
		overrides["set"] = []string(sets)
	}
	if len(dispatch) > 0 {
		overrides["dispatch"] = []string(dispatch)
	}

	v, err := config.Load(*configFlag, defaults, overrides)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path = v.GetString("grid")
	slog.Debug("Grid path determined.", "path", path)
	if path == "" {
		slog.Debug("No grid path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(v.GetString("log-format"))
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	cfg, err := app.NewConfig(app.Config{
		GridPath:        path,
		HealthcheckPort: v.GetInt("healthcheck-port"),
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		WorkerCount:     v.GetInt("workers"),
		Cycles:          v.GetInt("cycles"),
		Tick:            v.GetDuration("tick"),
		Timeout:         v.GetDuration("timeout"),
		Sets:            v.GetStringSlice("set"),
		Dispatch:        v.GetStringSlice("dispatch"),
		Check:           v.GetBool("check"),
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}
