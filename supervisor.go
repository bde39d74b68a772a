package pyboot

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxRestarts bounds relaunch attempts when none is configured.
const DefaultMaxRestarts = 10

// DefaultRestartDelay is the wait between relaunch attempts when none is
// configured.
const DefaultRestartDelay = 5 * time.Second

// SuperviseOptions holds options for running the entry point under
// supervision: the plain launch options plus restart bounds.
type SuperviseOptions struct {
	LaunchOptions

	// MaxRestarts bounds relaunch attempts (0 = DefaultMaxRestarts)
	MaxRestarts int

	// RestartDelay is the wait between relaunch attempts
	// (0 = DefaultRestartDelay)
	RestartDelay time.Duration
}

// Supervise launches the entry point and relaunches it whenever it exits
// with a non-zero status, up to MaxRestarts attempts. A clean exit ends
// supervision. SIGINT/SIGTERM are forwarded to the child and end
// supervision once the child exits. Incompatible with ReplaceProcess.
func Supervise(opts SuperviseOptions) error {
	if opts.ReplaceProcess {
		return fmt.Errorf("cannot supervise a replaced process: restart requires spawning a child")
	}

	maxRestarts := opts.MaxRestarts
	if maxRestarts == 0 {
		maxRestarts = DefaultMaxRestarts
	}
	restartDelay := opts.RestartDelay
	if restartDelay == 0 {
		restartDelay = DefaultRestartDelay
	}

	python, err := FindPython(opts.PythonBin)
	if err != nil {
		return err
	}

	// Banner lines are printed once; restarts are launcher-internal
	PrintBanner(opts.stdout(), python)

	env := ChildEnv(opts.Envs)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var interrupted atomic.Bool

	for attempt := 0; ; attempt++ {
		err := runChild(python, env, opts.LaunchOptions, sigCh, &interrupted)
		if err == nil {
			zlog.Info("entrypoint exited cleanly, ending supervision",
				zap.Int("restarts", attempt))
			return nil
		}

		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			// The child never started; restarting would not help
			return err
		}

		if interrupted.Load() {
			zlog.Info("entrypoint terminated by signal, ending supervision",
				zap.Int("status", exitErr.Code))
			return err
		}

		if attempt >= maxRestarts {
			zlog.Warn("entrypoint keeps failing, giving up",
				zap.Int("status", exitErr.Code),
				zap.Int("restarts", attempt))
			return err
		}

		fmt.Fprintf(opts.stderr(), "Entrypoint exited with status %d, restarting in %s (attempt %d/%d)\n",
			exitErr.Code, restartDelay, attempt+1, maxRestarts)
		zlog.Info("entrypoint exited, restarting",
			zap.Int("status", exitErr.Code),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", restartDelay))

		// A signal during the delay ends supervision instead of waiting
		// for one more attempt
		select {
		case sig := <-sigCh:
			interrupted.Store(true)
			zlog.Info("signal received during restart delay, ending supervision",
				zap.String("signal", sig.String()))
			return err
		case <-time.After(restartDelay):
		}
	}
}

// runChild spawns one attempt of the entry point, forwarding any signal the
// supervisor receives while the child runs.
func runChild(python string, env []string, opts LaunchOptions, sigCh <-chan os.Signal, interrupted *atomic.Bool) error {
	cmd := exec.Command(python, append([]string{opts.entrypoint()}, opts.Args...)...)
	cmd.Dir = opts.WorkspaceDir
	cmd.Env = env
	cmd.Stdin = opts.stdin()
	cmd.Stdout = opts.stdout()
	cmd.Stderr = opts.stderr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start entrypoint: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				interrupted.Store(true)
				zlog.Debug("forwarding signal to entrypoint",
					zap.String("signal", sig.String()))
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(done)

	return waitStatus(err)
}
