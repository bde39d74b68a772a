package pyboot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// UnbufferedEnvVar is the buffering flag set for every launch. When the
// downstream interpreter sees it, printed text appears immediately instead
// of being held in a buffer.
const UnbufferedEnvVar = "PYTHONUNBUFFERED"

// Banner is the fixed launch banner printed before any child output.
const Banner = "Starting Python entrypoint launcher"

// LaunchOptions holds options for launching the entry point
type LaunchOptions struct {
	// WorkspaceDir is the directory the entry point runs in
	// (default: current directory)
	WorkspaceDir string

	// Entrypoint is the entry point file (default: main.py)
	Entrypoint string

	// PythonBin is the interpreter override (default: discovered)
	PythonBin string

	// Args are extra arguments passed to the entry point
	Args []string

	// Envs are resolved NAME=VALUE entries added to the child environment
	Envs []string

	// ReplaceProcess replaces the wrapper via exec instead of spawning a
	// child. Control never returns on success.
	ReplaceProcess bool

	// Stdout receives the banner lines and the child's stdout
	// (default: os.Stdout)
	Stdout io.Writer

	// Stderr receives the child's stderr (default: os.Stderr)
	Stderr io.Writer

	// Stdin is the child's stdin (default: os.Stdin)
	Stdin io.Reader
}

func (o *LaunchOptions) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o *LaunchOptions) stderr() io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return os.Stderr
}

func (o *LaunchOptions) stdin() io.Reader {
	if o.Stdin != nil {
		return o.Stdin
	}
	return os.Stdin
}

func (o *LaunchOptions) entrypoint() string {
	if o.Entrypoint != "" {
		return o.Entrypoint
	}
	return DefaultEntrypoint
}

// ExitError reports the exit status of a finished entry point. The CLI
// propagates the code verbatim as the wrapper's own exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("entrypoint exited with status %d", e.Code)
}

// ChildEnv builds the environment the child inherits: the current process
// environment with the buffering flag guaranteed, followed by the resolved
// extra entries. The flag is set in the wrapper's own environment first so
// it survives process replacement. Entries are deduplicated by name keeping
// the last occurrence, so overrides behave the same under exec as under
// spawn (exec passes the slice raw and getenv returns the first match).
func ChildEnv(extra []string) []string {
	os.Setenv(UnbufferedEnvVar, "1")

	env := append(os.Environ(), extra...)

	index := make(map[string]int, len(env))
	var deduped []string
	for _, e := range env {
		name := EnvName(e)
		if i, exists := index[name]; exists {
			deduped[i] = e
		} else {
			index[name] = len(deduped)
			deduped = append(deduped, e)
		}
	}
	return deduped
}

// PrintBanner writes the three informational launch lines: the fixed
// banner, the current wall-clock date/time, and the interpreter's version
// string. These must land before any child output.
func PrintBanner(w io.Writer, pythonBin string) {
	fmt.Fprintln(w, Banner)
	fmt.Fprintln(w, time.Now().Format(time.UnixDate))

	version, err := PythonVersion(pythonBin)
	if err != nil {
		version = fmt.Sprintf("Python version unavailable: %s", err)
	}
	fmt.Fprintln(w, version)
}

// Launch runs the entry point once: banner lines first, buffering flag set,
// then hand-off. In spawn mode it blocks until the child exits and returns
// an *ExitError carrying any non-zero status. In replace mode control never
// returns on success.
func Launch(opts LaunchOptions) error {
	python, err := FindPython(opts.PythonBin)
	if err != nil {
		return err
	}

	entrypoint := opts.entrypoint()

	PrintBanner(opts.stdout(), python)

	env := ChildEnv(opts.Envs)

	zlog.Debug("launching entrypoint",
		zap.String("python", python),
		zap.String("entrypoint", entrypoint),
		zap.Strings("args", opts.Args),
		zap.Bool("replace_process", opts.ReplaceProcess))

	if opts.ReplaceProcess {
		argv := append([]string{filepath.Base(python), entrypoint}, opts.Args...)
		if opts.WorkspaceDir != "" {
			if err := os.Chdir(opts.WorkspaceDir); err != nil {
				return fmt.Errorf("failed to enter workspace directory: %w", err)
			}
		}
		// syscall.Exec only returns on error
		return syscall.Exec(python, argv, env)
	}

	cmd := exec.Command(python, append([]string{entrypoint}, opts.Args...)...)
	cmd.Dir = opts.WorkspaceDir
	cmd.Env = env
	cmd.Stdin = opts.stdin()
	cmd.Stdout = opts.stdout()
	cmd.Stderr = opts.stderr()

	return waitStatus(cmd.Run())
}

// waitStatus maps a child's exit into the wrapper's error surface: nil for
// a clean exit, *ExitError for a non-zero status, anything else wrapped.
// A signal-killed child reports the shell convention 128+signal instead of
// the raw -1.
func waitStatus(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				code = 128 + int(ws.Signal())
			}
		}
		return &ExitError{Code: code}
	}
	return fmt.Errorf("failed to start entrypoint: %w", err)
}
