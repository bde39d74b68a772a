package pyboot

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCountingPython writes an interpreter stub that records how many times
// it has been invoked in the file named by the COUNT_FILE env var and exits
// with failUntil failures before succeeding (failUntil < 0 means it always
// fails).
func writeCountingPython(t *testing.T, failUntil int) string {
	t.Helper()

	var body string
	if failUntil < 0 {
		body = strings.Join([]string{
			`count=$(cat "$COUNT_FILE" 2>/dev/null || echo 0)`,
			`count=$((count+1))`,
			`printf '%s' "$count" > "$COUNT_FILE"`,
			`exit 1`,
		}, "\n")
	} else {
		body = strings.Join([]string{
			`count=$(cat "$COUNT_FILE" 2>/dev/null || echo 0)`,
			`count=$((count+1))`,
			`printf '%s' "$count" > "$COUNT_FILE"`,
			`if [ "$count" -gt ` + strconv.Itoa(failUntil) + ` ]; then exit 0; fi`,
			`exit 1`,
		}, "\n")
	}

	return writeFakePython(t, body)
}

func TestSupervise_CleanExitEndsSupervision(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	python := writeFakePython(t, `exit 0`)

	var out bytes.Buffer
	err := Supervise(SuperviseOptions{
		LaunchOptions: LaunchOptions{
			PythonBin: python,
			Stdout:    &out,
			Stderr:    &out,
		},
		MaxRestarts:  3,
		RestartDelay: time.Millisecond,
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), Banner)
}

func TestSupervise_RecoversAfterFailures(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	countFile := filepath.Join(t.TempDir(), "count")
	python := writeCountingPython(t, 2)

	var out, errOut bytes.Buffer
	err := Supervise(SuperviseOptions{
		LaunchOptions: LaunchOptions{
			PythonBin: python,
			Envs:      []string{"COUNT_FILE=" + countFile},
			Stdout:    &out,
			Stderr:    &errOut,
		},
		MaxRestarts:  5,
		RestartDelay: time.Millisecond,
	})

	require.NoError(t, err)

	count, readErr := os.ReadFile(countFile)
	require.NoError(t, readErr)
	assert.Equal(t, "3", string(count))

	assert.Contains(t, errOut.String(), "restarting in")
}

func TestSupervise_GivesUpAfterMaxRestarts(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	countFile := filepath.Join(t.TempDir(), "count")
	python := writeCountingPython(t, -1)

	var out, errOut bytes.Buffer
	err := Supervise(SuperviseOptions{
		LaunchOptions: LaunchOptions{
			PythonBin: python,
			Envs:      []string{"COUNT_FILE=" + countFile},
			Stdout:    &out,
			Stderr:    &errOut,
		},
		MaxRestarts:  2,
		RestartDelay: time.Millisecond,
	})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)

	// Initial attempt plus two restarts
	count, readErr := os.ReadFile(countFile)
	require.NoError(t, readErr)
	assert.Equal(t, "3", string(count))
}

func TestSupervise_BannerPrintedOnce(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	countFile := filepath.Join(t.TempDir(), "count")
	python := writeCountingPython(t, 1)

	var out bytes.Buffer
	err := Supervise(SuperviseOptions{
		LaunchOptions: LaunchOptions{
			PythonBin: python,
			Envs:      []string{"COUNT_FILE=" + countFile},
			Stdout:    &out,
			Stderr:    &bytes.Buffer{},
		},
		MaxRestarts:  3,
		RestartDelay: time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out.String(), Banner))
}

func TestSupervise_SignalForwardedToChild(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	countFile := filepath.Join(t.TempDir(), "count")
	python := writeFakePython(t, strings.Join([]string{
		`count=$(cat "$COUNT_FILE" 2>/dev/null || echo 0)`,
		`count=$((count+1))`,
		`printf '%s' "$count" > "$COUNT_FILE"`,
		`sleep 30`,
	}, "\n"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- Supervise(SuperviseOptions{
			LaunchOptions: LaunchOptions{
				PythonBin: python,
				Envs:      []string{"COUNT_FILE=" + countFile},
				Stdout:    &bytes.Buffer{},
				Stderr:    &bytes.Buffer{},
			},
			MaxRestarts:  5,
			RestartDelay: time.Millisecond,
		})
	}()

	waitForFileContent(t, countFile, "1")
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-errCh:
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 128+int(syscall.SIGTERM), exitErr.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("supervision did not end after signal")
	}

	// The signal-killed child must not be restarted
	count, readErr := os.ReadFile(countFile)
	require.NoError(t, readErr)
	assert.Equal(t, "1", string(count))
}

func TestSupervise_SignalDuringRestartDelay(t *testing.T) {
	t.Setenv(UnbufferedEnvVar, "0")

	countFile := filepath.Join(t.TempDir(), "count")
	python := writeCountingPython(t, -1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Supervise(SuperviseOptions{
			LaunchOptions: LaunchOptions{
				PythonBin: python,
				Envs:      []string{"COUNT_FILE=" + countFile},
				Stdout:    &bytes.Buffer{},
				Stderr:    &bytes.Buffer{},
			},
			MaxRestarts:  5,
			RestartDelay: time.Minute,
		})
	}()

	// The first attempt fails immediately, parking the supervisor in its
	// restart delay
	waitForFileContent(t, countFile, "1")
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-errCh:
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("supervision did not end during restart delay")
	}

	// No further attempt once the signal arrives
	count, readErr := os.ReadFile(countFile)
	require.NoError(t, readErr)
	assert.Equal(t, "1", string(count))
}

// waitForFileContent polls until the file holds the expected content,
// failing the test after a generous deadline.
func waitForFileContent(t *testing.T, path, want string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && string(data) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to contain %q", path, want)
}

func TestSupervise_RejectsReplaceProcess(t *testing.T) {
	err := Supervise(SuperviseOptions{
		LaunchOptions: LaunchOptions{
			ReplaceProcess: true,
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot supervise a replaced process")
}

func TestSupervise_MissingInterpreter(t *testing.T) {
	err := Supervise(SuperviseOptions{
		LaunchOptions: LaunchOptions{
			PythonBin: "/nonexistent/python3",
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
