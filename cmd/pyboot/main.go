package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/botworks/pyboot"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

// Version is set via ldflags at build time
var version = "dev"

func init() {
	logging.InstantiateLoggers(logging.WithDefaultLevel(zap.DPanicLevel))
}

func main() {
	Run(
		"pyboot <command>",
		"Startup wrapper for Python entry points with unbuffered output and a managed environment",

		ConfigureVersion(version),
		ConfigureViper("PYBOOT"),

		// Default command (no subcommand = run)
		Execute(runE),

		RunCommand,
		EnvGroup,
		ConfigCommand,
		InfoCommand,
		CleanCommand,

		OnCommandError(func(err error) {
			var exitErr *pyboot.ExitError
			if errors.As(err, &exitErr) {
				// The child's own output and diagnostics already reached the
				// terminal; its status propagates verbatim
				os.Exit(exitErr.Code)
			}
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			zlog.Debug("command error", zap.Error(err))
			os.Exit(1)
		}),
	)
}
