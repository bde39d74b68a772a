package pyboot

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// ResolvedEnv is a merged environment variable spec together with the
// configuration layer it came from ("global", "file" or "project").
type ResolvedEnv struct {
	// Spec is the raw entry, "NAME=VALUE" or "NAME" for host passthrough
	Spec string

	// Source is the configuration layer that provided the winning entry
	Source string
}

// EnvName returns the variable name of an env spec ("NAME" or "NAME=VALUE").
func EnvName(spec string) string {
	if idx := strings.Index(spec, "="); idx >= 0 {
		return spec[:idx]
	}
	return spec
}

// MergeEnvs merges environment variable specs from the three configuration
// layers. Precedence by name is project > file > global; first-seen order is
// preserved. Returns the merged specs and their per-entry sources.
func MergeEnvs(globalEnvs, fileEnvs, projectEnvs []string) ([]string, []ResolvedEnv) {
	var merged []ResolvedEnv
	index := make(map[string]int)

	add := func(envs []string, source string) {
		for _, env := range envs {
			name := EnvName(env)
			if name == "" {
				continue
			}
			if i, exists := index[name]; exists {
				merged[i] = ResolvedEnv{Spec: env, Source: source}
			} else {
				index[name] = len(merged)
				merged = append(merged, ResolvedEnv{Spec: env, Source: source})
			}
		}
	}

	add(globalEnvs, "global")
	add(fileEnvs, "file")
	add(projectEnvs, "project")

	var specs []string
	for _, r := range merged {
		specs = append(specs, r.Spec)
	}
	return specs, merged
}

// ResolveEnvs merges the three layers and resolves passthrough entries
// (NAME without =) from the current host environment. Passthrough names
// unset on the host are dropped. Returns "NAME=VALUE" strings ready to
// apply to the child environment.
func ResolveEnvs(globalEnvs, fileEnvs, projectEnvs []string) []string {
	merged, _ := MergeEnvs(globalEnvs, fileEnvs, projectEnvs)

	var resolved []string
	for _, env := range merged {
		if strings.Contains(env, "=") {
			// Already has value
			resolved = append(resolved, env)
		} else {
			// Passthrough - resolve from host environment
			value, found := os.LookupEnv(env)
			if found {
				resolved = append(resolved, env+"="+value)
				zlog.Debug("resolved passthrough env",
					zap.String("name", env))
			} else {
				zlog.Debug("passthrough env not set on host, skipping",
					zap.String("name", env))
			}
		}
	}

	return resolved
}
