package main

import (
	"fmt"
	"os"

	"github.com/botworks/pyboot"
	"github.com/spf13/cobra"
	"github.com/streamingfast/logging"
)

var zlog, _ = logging.PackageLogger("pyboot", "github.com/botworks/pyboot/cmd/pyboot")

// WorkspaceContext contains the resolved configuration for a workspace.
// This consolidates the common pattern of loading the global config, the
// project config and the pyboot.yaml file that appears in run, env and
// info commands.
type WorkspaceContext struct {
	WorkspaceDir  string
	ProjectHash   string
	Config        *pyboot.Config
	ProjectConfig *pyboot.ProjectConfig
	LaunchFile    *pyboot.LaunchFileLocation
}

// LoadWorkspaceContext loads all configuration layers for a workspace.
// The returned ProjectConfig already has the pyboot.yaml file merged in.
func LoadWorkspaceContext(cmd *cobra.Command) (*WorkspaceContext, error) {
	workspaceDir, err := getWorkspaceDir(cmd)
	if err != nil {
		return nil, err
	}

	config, err := pyboot.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	projectConfig, projectHash, err := pyboot.GetProjectConfig(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	launchFile, err := pyboot.FindLaunchFile(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load pyboot.yaml file: %w", err)
	}

	projectConfig, err = pyboot.MergeProjectConfig(projectConfig, launchFile)
	if err != nil {
		return nil, fmt.Errorf("failed to merge pyboot.yaml config: %w", err)
	}

	return &WorkspaceContext{
		WorkspaceDir:  workspaceDir,
		ProjectHash:   projectHash,
		Config:        config,
		ProjectConfig: projectConfig,
		LaunchFile:    launchFile,
	}, nil
}

// launchFileEnvs returns the env specs from the pyboot.yaml file, if any.
func (c *WorkspaceContext) launchFileEnvs() []string {
	if c.LaunchFile != nil && c.LaunchFile.Config != nil {
		return c.LaunchFile.Config.Envs
	}
	return nil
}

// getWorkspaceDir extracts the workspace directory from the --workspace flag
// or defaults to the current working directory.
func getWorkspaceDir(cmd *cobra.Command) (string, error) {
	workspaceDir := flagString(cmd, "workspace")
	if workspaceDir == "" {
		var err error
		workspaceDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	return workspaceDir, nil
}

// Flag accessors that tolerate undefined flags. The bare `pyboot`
// invocation runs runE on the root command, which carries none of the run
// subcommand's flags.

func flagString(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	value, _ := cmd.Flags().GetString(name)
	return value
}

func flagBool(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil {
		return false
	}
	value, _ := cmd.Flags().GetBool(name)
	return value
}

func flagInt(cmd *cobra.Command, name string) int {
	if cmd.Flags().Lookup(name) == nil {
		return 0
	}
	value, _ := cmd.Flags().GetInt(name)
	return value
}

func flagChanged(cmd *cobra.Command, name string) bool {
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}
