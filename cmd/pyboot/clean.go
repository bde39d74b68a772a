package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/botworks/pyboot"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
)

var CleanCommand = Command(cleanE,
	"clean",
	"Remove cached project data",
	Description(`
		Removes the stored configuration for the current project.

		With --all, removes the stored configuration for ALL known projects.
		Asks for confirmation before proceeding.
	`),
	Flags(func(flags *pflag.FlagSet) {
		flags.Bool("all", false, "Remove data for all known projects")
	}),
)

// cleanE removes cached project data
func cleanE(cmd *cobra.Command, args []string) error {
	cleanAll, _ := cmd.Flags().GetBool("all")

	if cleanAll {
		answeredYes, _ := AskConfirmation("This will remove the stored configuration for all known projects. Continue?")
		if !answeredYes {
			cmd.Println("Aborted.")
			return nil
		}

		config, err := pyboot.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		projectsDir := filepath.Join(config.DataDir, "projects")
		if err := os.RemoveAll(projectsDir); err != nil {
			return fmt.Errorf("failed to clean projects: %w", err)
		}

		cmd.Println("Project data cleaned")
		return nil
	}

	workspaceDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if err := pyboot.RemoveProjectData(workspaceDir); err != nil {
		return fmt.Errorf("failed to remove project data: %w", err)
	}

	cmd.Println("Project data cleaned")
	return nil
}
