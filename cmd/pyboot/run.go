package main

import (
	"fmt"
	"time"

	"github.com/botworks/pyboot"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"go.uber.org/zap"
)

var RunCommand = Command(runE,
	"run [-- args...]",
	"Launch the Python entry point with unbuffered output and the merged environment",
	Description(`
		Prints the launch banner, the current date and the interpreter version,
		sets PYTHONUNBUFFERED=1 so the entry point's output appears immediately,
		then hands control to the entry point (main.py by default).

		The wrapper exits with the entry point's exit status. Arguments after
		-- are passed through to the entry point unchanged.

		With --restart, the entry point is relaunched whenever it exits with a
		non-zero status, up to --max-restarts attempts.
	`),
	Flags(func(flags *pflag.FlagSet) {
		flags.StringP("workspace", "w", "", "Workspace directory (default: current directory)")
		flags.String("entrypoint", "", "Entry point file to launch (default: main.py)")
		flags.String("python", "", "Python interpreter to use (default: discovered)")
		flags.Bool("exec", false, "Replace the wrapper process instead of spawning a child")
		flags.Bool("restart", false, "Relaunch the entry point when it exits with a non-zero status")
		flags.Int("max-restarts", pyboot.DefaultMaxRestarts, "Maximum relaunch attempts with --restart")
		flags.Duration("restart-delay", pyboot.DefaultRestartDelay, "Delay between relaunch attempts with --restart")
	}),
)

// runE launches the entry point with the resolved configuration
func runE(cmd *cobra.Command, args []string) error {
	zlog.Debug("starting pyboot run command")

	ctx, err := LoadWorkspaceContext(cmd)
	if err != nil {
		return err
	}

	// Save project config to register this project (for pyboot info)
	if err := pyboot.SaveProjectConfig(ctx.WorkspaceDir, ctx.ProjectConfig); err != nil {
		zlog.Warn("failed to save project config", zap.Error(err))
		// Non-fatal: continue launching even if we can't save config
	}

	// Resolve launch settings: flag > project config (pyboot.yaml merged) > global
	entrypoint := flagString(cmd, "entrypoint")
	if entrypoint == "" {
		entrypoint = ctx.ProjectConfig.Entrypoint
	}
	if entrypoint == "" {
		entrypoint = ctx.Config.Entrypoint
	}

	pythonBin := flagString(cmd, "python")
	if pythonBin == "" {
		pythonBin = ctx.ProjectConfig.PythonBin
	}
	if pythonBin == "" {
		pythonBin = ctx.Config.PythonBin
	}

	envs := pyboot.ResolveEnvs(ctx.Config.Envs, ctx.launchFileEnvs(), ctx.ProjectConfig.Envs)

	replaceProcess := flagBool(cmd, "exec")
	restart := flagBool(cmd, "restart") || ctx.ProjectConfig.Restart

	if restart && replaceProcess {
		return fmt.Errorf("--restart cannot be combined with --exec: process replacement leaves nothing to supervise")
	}

	opts := pyboot.LaunchOptions{
		WorkspaceDir:   ctx.WorkspaceDir,
		Entrypoint:     entrypoint,
		PythonBin:      pythonBin,
		Args:           args,
		Envs:           envs,
		ReplaceProcess: replaceProcess,
	}

	if !restart {
		return pyboot.Launch(opts)
	}

	maxRestarts := ctx.ProjectConfig.MaxRestarts
	if flagChanged(cmd, "max-restarts") || maxRestarts == 0 {
		maxRestarts = flagInt(cmd, "max-restarts")
	}

	restartDelay, err := resolveRestartDelay(cmd, ctx.ProjectConfig.RestartDelay)
	if err != nil {
		return err
	}

	return pyboot.Supervise(pyboot.SuperviseOptions{
		LaunchOptions: opts,
		MaxRestarts:   maxRestarts,
		RestartDelay:  restartDelay,
	})
}

// resolveRestartDelay picks the restart delay: an explicit flag wins, then
// the project config's duration string, then the package default.
func resolveRestartDelay(cmd *cobra.Command, configured string) (time.Duration, error) {
	if flagChanged(cmd, "restart-delay") {
		delay, err := cmd.Flags().GetDuration("restart-delay")
		if err != nil {
			return 0, fmt.Errorf("failed to get restart-delay flag: %w", err)
		}
		return delay, nil
	}

	if configured != "" {
		delay, err := time.ParseDuration(configured)
		if err != nil {
			return 0, fmt.Errorf("invalid restart_delay %q in project config: %w", configured, err)
		}
		return delay, nil
	}

	return pyboot.DefaultRestartDelay, nil
}
