package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/botworks/pyboot"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
)

var InfoCommand = Command(infoE,
	"info",
	"Show project information",
	Description(`
		Shows information about the launcher project for the current directory.

		Without flags, shows the current project's settings including:
		- Workspace path and hash
		- Entry point and interpreter
		- Merged environment variables with their sources
		- The launch command that 'pyboot run' would execute

		With --all, lists all known projects that have been launched with pyboot.
	`),
	Flags(func(flags *pflag.FlagSet) {
		flags.Bool("all", false, "Show all known projects")
		flags.StringP("workspace", "w", "", "Workspace directory (default: current directory)")
	}),
)

// infoE shows project information
func infoE(cmd *cobra.Command, args []string) error {
	showAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return fmt.Errorf("failed to get all flag: %w", err)
	}

	if showAll {
		return infoAllProjects(cmd)
	}

	return infoCurrentProject(cmd)
}

// infoCurrentProject shows information for the current project
func infoCurrentProject(cmd *cobra.Command) error {
	ctx, err := LoadWorkspaceContext(cmd)
	if err != nil {
		return err
	}

	cmd.Printf("Project: %s\n", ctx.WorkspaceDir)
	cmd.Printf("  Hash:       %s\n", ctx.ProjectHash)

	entrypoint := ctx.ProjectConfig.Entrypoint
	if entrypoint == "" {
		entrypoint = ctx.Config.Entrypoint
	}
	cmd.Printf("  Entrypoint: %s\n", entrypoint)

	pythonBin := ctx.ProjectConfig.PythonBin
	if pythonBin == "" {
		pythonBin = ctx.Config.PythonBin
	}

	python, pythonErr := pyboot.FindPython(pythonBin)
	if pythonErr != nil {
		cmd.Printf("  Python:     error: %s\n", pythonErr)
	} else {
		cmd.Printf("  Python:     %s\n", python)
		if version, err := pyboot.PythonVersion(python); err == nil {
			cmd.Printf("  Version:    %s\n", version)
		}
	}

	if ctx.LaunchFile != nil {
		cmd.Printf("  File:       %s\n", ctx.LaunchFile.Path)
	}
	if ctx.ProjectConfig.Restart {
		cmd.Printf("  Restart:    enabled (max %d)\n", ctx.ProjectConfig.MaxRestarts)
	}

	_, resolved := pyboot.MergeEnvs(ctx.Config.Envs, ctx.launchFileEnvs(), ctx.ProjectConfig.Envs)
	if len(resolved) > 0 {
		cmd.Printf("  Envs:\n")
		printResolvedEnvs(cmd, resolved, "    ")
	}

	if pythonErr == nil {
		cmd.Printf("  Command:\n    %s\n", formatLaunchCommand(python, entrypoint, nil))
	}

	return nil
}

// infoAllProjects lists all known projects
func infoAllProjects(cmd *cobra.Command) error {
	projects, err := pyboot.ListProjects()
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		cmd.Println("No known projects.")
		cmd.Println("Run 'pyboot' or 'pyboot run' in a directory to create a project.")
		return nil
	}

	cmd.Println("Known projects:")
	cmd.Println()

	for _, project := range projects {
		pathDisplay := project.WorkspacePath
		if pathDisplay == "" {
			pathDisplay = "(unknown path)"
		} else if _, err := os.Stat(pathDisplay); os.IsNotExist(err) {
			pathDisplay += " (path not found)"
		}

		cmd.Printf("  %s\n", pathDisplay)
		cmd.Printf("    Hash:       %s\n", project.Hash)
		if project.Config.Entrypoint != "" {
			cmd.Printf("    Entrypoint: %s\n", project.Config.Entrypoint)
		}
		if project.Config.PythonBin != "" {
			cmd.Printf("    Python:     %s\n", project.Config.PythonBin)
		}
		if project.Config.Restart {
			cmd.Printf("    Restart:    enabled (max %d)\n", project.Config.MaxRestarts)
		}
		if len(project.Config.Envs) > 0 {
			cmd.Printf("    Envs:       %v\n", project.Config.Envs)
		}
		cmd.Println()
	}

	return nil
}

// formatLaunchCommand formats the command line 'pyboot run' would execute.
func formatLaunchCommand(python, entrypoint string, extraArgs []string) string {
	parts := append([]string{python, entrypoint}, extraArgs...)
	for i, p := range parts {
		if strings.Contains(p, " ") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}
