package pyboot

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakePython writes an executable shell script standing in for the
// Python interpreter. Every stub answers `--version` so banner printing
// works, then runs the given body.
func writeFakePython(t *testing.T, body string) string {
	t.Helper()

	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--version\" ]; then\n" +
		"  echo \"Python 3.11.9\"\n" +
		"  exit 0\n" +
		"fi\n" +
		body + "\n"

	path := filepath.Join(t.TempDir(), "python3")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestChildEnv(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	env := ChildEnv([]string{"FOO=bar"})

	assert.Contains(t, env, UnbufferedEnvVar+"=1")
	assert.Contains(t, env, "FOO=bar")

	// The flag is forced in the wrapper's own environment too, so it
	// survives process replacement
	assert.Equal(t, "1", os.Getenv(UnbufferedEnvVar))
}

func TestChildEnv_DeduplicatesKeepingLast(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")
	t.Setenv("PYBOOT_DEDUP_TEST", "host")

	env := ChildEnv([]string{"PYBOOT_DEDUP_TEST=override"})

	// A single entry per name, so the override also wins under exec where
	// getenv returns the first match
	seen := 0
	for _, e := range env {
		if EnvName(e) == "PYBOOT_DEDUP_TEST" {
			seen++
			assert.Equal(t, "PYBOOT_DEDUP_TEST=override", e)
		}
	}
	assert.Equal(t, 1, seen)
}

func TestPrintBanner(t *testing.T) {
	python := writeFakePython(t, "exit 0")

	var out bytes.Buffer
	PrintBanner(&out, python)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, Banner, lines[0])
	assert.Contains(t, lines[1], fmt.Sprintf("%d", time.Now().Year()))
	assert.Equal(t, "Python 3.11.9", lines[2])
}

func TestPrintBanner_VersionUnavailable(t *testing.T) {
	var out bytes.Buffer
	PrintBanner(&out, "/nonexistent/python3")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "Python version unavailable")
}

func TestLaunch_ExitStatus(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `exit ${STUB_EXIT:-0}`)

	tests := []struct {
		name     string
		stubExit string
		wantCode int
	}{
		{"clean exit", "0", 0},
		{"failure propagated", "1", 1},
		{"arbitrary status propagated", "3", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := Launch(LaunchOptions{
				PythonBin: python,
				Envs:      []string{"STUB_EXIT=" + tt.stubExit},
				Stdout:    &out,
				Stderr:    &out,
			})

			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tt.wantCode, exitErr.Code)
		})
	}
}

func TestLaunch_BannerPrecedesChildOutput(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `echo "child output"`)

	var out bytes.Buffer
	require.NoError(t, Launch(LaunchOptions{
		PythonBin: python,
		Stdout:    &out,
		Stderr:    &out,
	}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, Banner, lines[0])
	assert.Equal(t, "Python 3.11.9", lines[2])
	assert.Equal(t, "child output", lines[3])
}

func TestLaunch_ChildSeesUnbufferedFlag(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `echo "unbuffered=$PYTHONUNBUFFERED"`)

	var out bytes.Buffer
	require.NoError(t, Launch(LaunchOptions{
		PythonBin: python,
		Stdout:    &out,
	}))

	assert.Contains(t, out.String(), "unbuffered=1")
}

func TestLaunch_ChildSeesExtraEnvs(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `echo "token=$BOT_TOKEN"`)

	var out bytes.Buffer
	require.NoError(t, Launch(LaunchOptions{
		PythonBin: python,
		Envs:      []string{"BOT_TOKEN=secret"},
		Stdout:    &out,
	}))

	assert.Contains(t, out.String(), "token=secret")
}

func TestLaunch_ChildRunsInWorkspace(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `pwd`)
	workspace := t.TempDir()

	var out bytes.Buffer
	require.NoError(t, Launch(LaunchOptions{
		WorkspaceDir: workspace,
		PythonBin:    python,
		Stdout:       &out,
	}))

	assert.Contains(t, out.String(), workspace)
}

func TestLaunch_MissingInterpreter(t *testing.T) {
	var out bytes.Buffer
	err := Launch(LaunchOptions{
		PythonBin: "/nonexistent/python3",
		Stdout:    &out,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	// Interpreter discovery failures are launcher errors, not child exits
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestLaunch_MissingEntrypoint(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	// Mimics CPython: can't open file -> status 2 on stderr
	python := writeFakePython(t, strings.Join([]string{
		`if [ ! -f "$1" ]; then`,
		`  echo "python3: can't open file '$1'" >&2`,
		`  exit 2`,
		`fi`,
		`exit 0`,
	}, "\n"))

	var out, errOut bytes.Buffer
	err := Launch(LaunchOptions{
		WorkspaceDir: t.TempDir(),
		PythonBin:    python,
		Stdout:       &out,
		Stderr:       &errOut,
	})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, errOut.String(), "can't open file")
}

func TestLaunch_DefaultEntrypoint(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `echo "running $1"`)

	var out bytes.Buffer
	require.NoError(t, Launch(LaunchOptions{
		PythonBin: python,
		Stdout:    &out,
	}))

	assert.Contains(t, out.String(), "running "+DefaultEntrypoint)
}

func TestLaunch_SignalKilledChild(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `kill -TERM $$`)

	var out bytes.Buffer
	err := Launch(LaunchOptions{
		PythonBin: python,
		Stdout:    &out,
		Stderr:    &out,
	})

	// Shell convention for a signal-killed child: 128 + signal number
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 128+int(syscall.SIGTERM), exitErr.Code)
}

func TestWaitStatus(t *testing.T) {
	assert.NoError(t, waitStatus(nil))

	err := waitStatus(errors.New("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start entrypoint")
}
