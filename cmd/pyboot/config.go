package main

import (
	"fmt"

	"github.com/botworks/pyboot"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var ConfigCommand = Command(configE,
	"config [key] [value]",
	"View or edit configuration settings",
	Description(`
		Without arguments, displays the current configuration.
		With a key, displays that setting's value.
		With key and value, sets the configuration option.
	`),
)

// configE views or edits configuration
func configE(cmd *cobra.Command, args []string) error {
	config, err := pyboot.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(args) == 0 {
		// Show all configuration
		cmd.Println("Global configuration:")
		cmd.Printf("  python_bin: %s\n", config.PythonBin)
		cmd.Printf("  entrypoint: %s\n", config.Entrypoint)
		cmd.Printf("  data_dir:   %s\n", config.DataDir)
		cmd.Printf("  envs:       %v\n", config.Envs)
		return nil
	}

	key := args[0]

	if len(args) == 1 {
		// Show specific key
		switch key {
		case "python_bin":
			cmd.Println(config.PythonBin)
		case "entrypoint":
			cmd.Println(config.Entrypoint)
		case "data_dir":
			cmd.Println(config.DataDir)
		case "envs":
			cmd.Printf("%v\n", config.Envs)
		default:
			return fmt.Errorf("unknown config key: %s", key)
		}
		return nil
	}

	// Set value
	value := args[1]
	switch key {
	case "python_bin":
		config.PythonBin = value
	case "entrypoint":
		config.Entrypoint = value
	default:
		return fmt.Errorf("cannot set config key: %s (read-only or unknown)", key)
	}

	if err := pyboot.SaveConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}
