package pyboot

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultEntrypoint is the entry point file launched when none is configured.
const DefaultEntrypoint = "main.py"

// pythonProbePaths are the well-known interpreter locations checked before
// falling back to PATH.
var pythonProbePaths = []string{
	"/usr/local/bin/python3",
	"/usr/bin/python3",
	"/opt/homebrew/bin/python3",
}

// FindPython locates the Python interpreter to launch. An explicit override
// (flag or config) wins; otherwise well-known locations are probed, then
// PATH is searched for python3 and finally python.
func FindPython(override string) (string, error) {
	if override != "" {
		// A bare name goes through PATH, anything else must exist as given
		if filepath.Base(override) == override {
			path, err := exec.LookPath(override)
			if err != nil {
				return "", fmt.Errorf("python interpreter %q not found in PATH: %w", override, err)
			}
			return path, nil
		}
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("python interpreter %q not found: %w", override, err)
		}
		return override, nil
	}

	for _, p := range pythonProbePaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("python interpreter not found in known locations or PATH")
}

// PythonVersion returns the interpreter's own version string, the trimmed
// output of `<python> --version`. Combined output is captured because
// Python 2 printed the version to stderr.
func PythonVersion(pythonBin string) (string, error) {
	out, err := exec.Command(pythonBin, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to query python version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
